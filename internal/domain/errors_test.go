package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"resumekit/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, domain.IsRetryable(domain.ErrDatabaseError))
	assert.True(t, domain.IsRetryable(fmt.Errorf("persist link: %w", domain.ErrDatabaseError)))

	for _, err := range []error{
		domain.ErrNotFound,
		domain.ErrLimitExceeded,
		domain.ErrConflict,
		domain.ErrUnauthorized,
		domain.ErrInvalidArgument,
		domain.ErrEditCancelled,
		errors.New("something else"),
		nil,
	} {
		assert.False(t, domain.IsRetryable(err), "%v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := domain.NewValidationError(domain.BlockTypeSkill, domain.Invalid(
		domain.FieldError{Field: "name", Message: "skill name is required"},
		domain.FieldError{Field: "proficiency", Message: "must be one of beginner, intermediate, advanced, expert"},
	))
	assert.Equal(t,
		"invalid skill payload: name: skill name is required; proficiency: must be one of beginner, intermediate, advanced, expert",
		err.Error(),
	)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
}

func TestPayloadClone(t *testing.T) {
	p := domain.Payload{"name": "Go", "yearsOfExperience": 5}
	c := p.Clone()
	c["name"] = "Rust"
	assert.Equal(t, "Go", p["name"])
	assert.Equal(t, 5, c["yearsOfExperience"])
}
