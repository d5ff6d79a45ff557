package blocktype

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"resumekit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Built-in block types — validators and default payloads
// ─────────────────────────────────────────────────────────────

// Builtin returns a descriptor for every block type in the closed set.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Type:         domain.BlockTypeContact,
			DisplayName:  "Contact Information",
			Category:     CategoryPersonal,
			MaxInstances: maxOne(),
			Validate:     validateContact,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"fullName": "",
					"email":    "",
					"phone":    "",
					"location": "",
					"website":  "",
				}
			},
		},
		{
			Type:         domain.BlockTypeSummary,
			DisplayName:  "Professional Summary",
			Category:     CategoryPersonal,
			MaxInstances: maxOne(),
			Validate:     validateSummary,
			NewDefault: func() domain.Payload {
				return domain.Payload{"text": ""}
			},
		},
		{
			Type:        domain.BlockTypeExperience,
			DisplayName: "Work Experience",
			Category:    CategoryProfessional,
			Validate:    validateExperience,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"company":     "",
					"position":    "",
					"startDate":   "",
					"endDate":     "",
					"current":     false,
					"description": "",
				}
			},
		},
		{
			Type:        domain.BlockTypeEducation,
			DisplayName: "Education",
			Category:    CategoryProfessional,
			Validate:    validateEducation,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"institution": "",
					"degree":      "",
					"field":       "",
					"startDate":   "",
					"endDate":     "",
				}
			},
		},
		{
			Type:        domain.BlockTypeSkill,
			DisplayName: "Skill",
			Category:    CategorySkills,
			Validate:    validateSkill,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"name":              "",
					"category":          "",
					"proficiency":       "intermediate",
					"yearsOfExperience": 0,
				}
			},
		},
		{
			Type:        domain.BlockTypeProject,
			DisplayName: "Project",
			Category:    CategoryAchievements,
			Validate:    validateProject,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"name":        "",
					"description": "",
					"url":         "",
				}
			},
		},
		{
			Type:        domain.BlockTypeCertification,
			DisplayName: "Certification",
			Category:    CategoryAchievements,
			Validate:    validateCertification,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"name":   "",
					"issuer": "",
					"date":   "",
				}
			},
		},
		{
			Type:        domain.BlockTypeLanguage,
			DisplayName: "Language",
			Category:    CategorySkills,
			Validate:    validateLanguage,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"name":  "",
					"level": "conversational",
				}
			},
		},
		{
			Type:            domain.BlockTypeAvatar,
			DisplayName:     "Photo",
			Category:        CategoryPersonal,
			MaxInstances:    maxOne(),
			DefaultComplete: true,
			Validate:        validateAvatar,
			NewDefault: func() domain.Payload {
				return domain.Payload{"imageUrl": ""}
			},
		},
		{
			Type:        domain.BlockTypeCustom,
			DisplayName: "Custom Section",
			Category:    CategoryOther,
			Validate:    validateCustom,
			NewDefault: func() domain.Payload {
				return domain.Payload{
					"title":   "",
					"content": "",
				}
			},
		},
	}
}

// ── Validators ─────────────────────────────────────────────

func validateContact(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "fullName", "full name is required")
	email := str(p, "email")
	if email == "" {
		errs = append(errs, domain.FieldError{Field: "email", Message: "email is required"})
	} else if !strings.Contains(email, "@") {
		errs = append(errs, domain.FieldError{Field: "email", Message: "email must contain @"})
	}
	return result(errs)
}

func validateSummary(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "text", "summary text is required")
	return result(errs)
}

func validateExperience(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "company", "company is required")
	errs = requireString(errs, p, "position", "position is required")
	start, end := str(p, "startDate"), str(p, "endDate")
	if start != "" && end != "" {
		st, serr := time.Parse("2006-01", start)
		en, eerr := time.Parse("2006-01", end)
		switch {
		case serr != nil:
			errs = append(errs, domain.FieldError{Field: "startDate", Message: "expected YYYY-MM"})
		case eerr != nil:
			errs = append(errs, domain.FieldError{Field: "endDate", Message: "expected YYYY-MM"})
		case en.Before(st):
			errs = append(errs, domain.FieldError{Field: "endDate", Message: "end date is before start date"})
		}
	}
	return result(errs)
}

func validateEducation(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "institution", "institution is required")
	errs = requireString(errs, p, "degree", "degree is required")
	return result(errs)
}

var proficiencyLevels = []string{"beginner", "intermediate", "advanced", "expert"}

func validateSkill(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "name", "skill name is required")
	errs = requireString(errs, p, "category", "category is required")
	if prof := str(p, "proficiency"); !contains(proficiencyLevels, prof) {
		errs = append(errs, domain.FieldError{
			Field:   "proficiency",
			Message: fmt.Sprintf("must be one of %s", strings.Join(proficiencyLevels, ", ")),
		})
	}
	if years, ok := num(p, "yearsOfExperience"); ok && years < 0 {
		errs = append(errs, domain.FieldError{Field: "yearsOfExperience", Message: "must be zero or more"})
	}
	return result(errs)
}

func validateProject(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "name", "project name is required")
	if raw := str(p, "url"); raw != "" {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, domain.FieldError{Field: "url", Message: "must be an absolute URL"})
		}
	}
	return result(errs)
}

func validateCertification(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "name", "certification name is required")
	errs = requireString(errs, p, "issuer", "issuer is required")
	return result(errs)
}

var languageLevels = []string{"basic", "conversational", "fluent", "native"}

func validateLanguage(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "name", "language name is required")
	if lvl := str(p, "level"); !contains(languageLevels, lvl) {
		errs = append(errs, domain.FieldError{
			Field:   "level",
			Message: fmt.Sprintf("must be one of %s", strings.Join(languageLevels, ", ")),
		})
	}
	return result(errs)
}

// Avatar intentionally accepts an empty payload: the photo is optional until
// the user uploads one.
func validateAvatar(p domain.Payload) domain.ValidationResult {
	return domain.ValidOK()
}

func validateCustom(p domain.Payload) domain.ValidationResult {
	var errs []domain.FieldError
	errs = requireString(errs, p, "title", "section title is required")
	return result(errs)
}

// ── helpers ────────────────────────────────────────────────

func str(p domain.Payload, key string) string {
	s, _ := p[key].(string)
	return s
}

func num(p domain.Payload, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func requireString(errs []domain.FieldError, p domain.Payload, key, msg string) []domain.FieldError {
	if strings.TrimSpace(str(p, key)) == "" {
		errs = append(errs, domain.FieldError{Field: key, Message: msg})
	}
	return errs
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func result(errs []domain.FieldError) domain.ValidationResult {
	if len(errs) > 0 {
		return domain.Invalid(errs...)
	}
	return domain.ValidOK()
}
