package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned when a user with the same email is already stored.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidEmail is returned when an email fails the rule of the user's role.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidUser is returned when a user's payload does not match its role.
	ErrInvalidUser = errors.New("invalid user")
)

// DAOError wraps a storage failure with the name of the operation that hit it.
type DAOError struct {
	Op  string
	Err error
}

func (e *DAOError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DAOError) Unwrap() error { return e.Err }

func DAO(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *DAOError
	if errors.As(err, &existing) {
		return err
	}
	return &DAOError{Op: op, Err: err}
}

func IsDAO(err error) bool {
	var daoErr *DAOError
	return errors.As(err, &daoErr)
}
