package validation

import (
	"errors"
	"testing"

	"quizhub/internal/apperr"
	"quizhub/internal/model"
)

func TestEmailPolicy(t *testing.T) {
	policy := NewEmailPolicy("@unibuc.ro")

	type check struct {
		role  model.Role
		email string
		ok    bool
	}
	cases := []check{
		{model.RoleStudent, "a@b.com", true},
		{model.RoleStudent, "not-an-email", false},
		{model.RoleStudent, "", false},
		{model.RoleAdmin, "ops@company.org", true},
		{model.RoleAdmin, "ops@", false},
		{model.RoleInstructor, "prof@unibuc.ro", true},
		{model.RoleInstructor, "Prof@UNIBUC.RO", true},
		{model.RoleInstructor, "prof@gmail.com", false},
		{model.RoleInstructor, "prof@notunibuc.ro", false},
		{model.Role("GUEST"), "a@b.com", false},
	}
	for _, c := range cases {
		err := policy.Check(c.role, c.email)
		if c.ok && err != nil {
			t.Fatalf("%s %q: expected valid, got %v", c.role, c.email, err)
		}
		if !c.ok && !errors.Is(err, apperr.ErrInvalidEmail) {
			t.Fatalf("%s %q: expected ErrInvalidEmail, got %v", c.role, c.email, err)
		}
	}
}

func TestEmailPolicyWithoutDomain(t *testing.T) {
	policy := NewEmailPolicy("")
	if err := policy.Check(model.RoleInstructor, "prof@gmail.com"); err != nil {
		t.Fatalf("expected any domain to pass when unset, got %v", err)
	}
	if policy.InstructorDomain() != "" {
		t.Fatalf("expected empty domain")
	}
}
