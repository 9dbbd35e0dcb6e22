package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"quizhub/internal/apperr"
	"quizhub/internal/model"
)

// EmailPolicy holds the role-dependent email rules. Students and admins need a syntactically
// valid address; instructors must also be on the institutional domain.
type EmailPolicy struct {
	instructorDomain string
	validate         *validator.Validate
}

func NewEmailPolicy(instructorDomain string) *EmailPolicy {
	return &EmailPolicy{
		instructorDomain: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(instructorDomain), "@")),
		validate:         validator.New(),
	}
}

func (p *EmailPolicy) InstructorDomain() string {
	return p.instructorDomain
}

func (p *EmailPolicy) Check(role model.Role, email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: %q is not a valid address", apperr.ErrInvalidEmail, email)
	}
	switch role {
	case model.RoleStudent, model.RoleAdmin:
		return nil
	case model.RoleInstructor:
		if p.instructorDomain == "" {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(email), "@"+p.instructorDomain) {
			return fmt.Errorf("%w: instructor email %q should be under @%s", apperr.ErrInvalidEmail, email, p.instructorDomain)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidEmail, role)
	}
}
