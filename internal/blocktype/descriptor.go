package blocktype

import "resumekit/internal/domain"

// Category groups block types for display surfaces.
type Category string

const (
	CategoryPersonal     Category = "personal"
	CategoryProfessional Category = "professional"
	CategoryAchievements Category = "achievements"
	CategorySkills       Category = "skills"
	CategoryOther        Category = "other"
)

// ValidateFunc checks a payload. Pure: no I/O, no stored state.
type ValidateFunc func(p domain.Payload) domain.ValidationResult

// DefaultFunc produces a fresh payload that the type's validator accepts
// structurally (it may still be semantically incomplete, e.g. required
// fields left empty for the user to fill in).
type DefaultFunc func() domain.Payload

// Descriptor is the immutable metadata for one block type.
type Descriptor struct {
	Type        domain.BlockType
	DisplayName string
	Category    Category

	// MaxInstances caps how many links of this type one document may hold.
	// nil means unbounded. Enforced at link time by the composition engine,
	// not by Validate, because it depends on document state.
	MaxInstances *int

	Validate   ValidateFunc
	NewDefault DefaultFunc

	// DefaultComplete declares whether NewDefault's payload already passes
	// Validate. Most types leave required fields empty for the user, so their
	// defaults are structurally sound but semantically incomplete; a few
	// (avatar) are complete as-is.
	DefaultComplete bool
}

func maxOne() *int {
	one := 1
	return &one
}
