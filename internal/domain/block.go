package domain

import "time"

type BlockType string

const (
	BlockTypeContact       BlockType = "contact"
	BlockTypeSummary       BlockType = "summary"
	BlockTypeExperience    BlockType = "experience"
	BlockTypeEducation     BlockType = "education"
	BlockTypeSkill         BlockType = "skill"
	BlockTypeProject       BlockType = "project"
	BlockTypeCertification BlockType = "certification"
	BlockTypeLanguage      BlockType = "language"
	BlockTypeAvatar        BlockType = "avatar"
	BlockTypeCustom        BlockType = "custom"
)

// AllBlockTypes is the closed set of block types. Descriptor tables and
// exhaustiveness tests key off this slice.
var AllBlockTypes = []BlockType{
	BlockTypeContact,
	BlockTypeSummary,
	BlockTypeExperience,
	BlockTypeEducation,
	BlockTypeSkill,
	BlockTypeProject,
	BlockTypeCertification,
	BlockTypeLanguage,
	BlockTypeAvatar,
	BlockTypeCustom,
}

// Payload is the type-specific structured content of a block.
// Its shape is defined by the block type's validator.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// BlockInstance is one concrete piece of resume content. It is independently
// storable and may be linked from any number of documents.
type BlockInstance struct {
	ID          string    `json:"id"`
	Type        BlockType `json:"type"`
	Payload     Payload   `json:"payload"`
	OwnerUserID string    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FieldError names one invalid payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of a descriptor's Validate.
// Errors is ordered and non-empty when Valid is false.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

func ValidOK() ValidationResult {
	return ValidationResult{Valid: true}
}

func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}
