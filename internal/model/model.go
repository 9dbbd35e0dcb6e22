package model

import (
	"fmt"
	"strings"
	"time"

	"quizhub/internal/apperr"
)

type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

func ParseRole(value string) (Role, error) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(value))); role {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

type Level string

const (
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
)

func ParseLevel(value string) (Level, error) {
	switch level := Level(strings.ToUpper(strings.TrimSpace(value))); level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return level, nil
	default:
		return "", fmt.Errorf("unknown level %q", value)
	}
}

type StudentProfile struct {
	Level  Level
	Points int
}

type InstructorProfile struct {
	Department       string
	DateOfEmployment time.Time
}

type AdminProfile struct {
	Telephone string
}

// User is a tagged variant: Role selects which one of the profile pointers is set.
type User struct {
	ID       int64
	Email    string
	Username string
	Password string
	Role     Role

	Student    *StudentProfile
	Instructor *InstructorProfile
	Admin      *AdminProfile
}

func NewStudent(email, username, password string, level Level, points int) User {
	return User{
		Email:    email,
		Username: username,
		Password: password,
		Role:     RoleStudent,
		Student:  &StudentProfile{Level: level, Points: points},
	}
}

func NewInstructor(email, username, password, department string, employedOn time.Time) User {
	return User{
		Email:      email,
		Username:   username,
		Password:   password,
		Role:       RoleInstructor,
		Instructor: &InstructorProfile{Department: department, DateOfEmployment: employedOn},
	}
}

func NewAdmin(email, username, password, telephone string) User {
	return User{
		Email:    email,
		Username: username,
		Password: password,
		Role:     RoleAdmin,
		Admin:    &AdminProfile{Telephone: telephone},
	}
}

// Validate checks that exactly the profile of the user's role is present.
func (u User) Validate() error {
	set := 0
	for _, present := range []bool{u.Student != nil, u.Instructor != nil, u.Admin != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one role profile, got %d", apperr.ErrInvalidUser, set)
	}
	switch u.Role {
	case RoleStudent:
		if u.Student == nil {
			return fmt.Errorf("%w: student without student profile", apperr.ErrInvalidUser)
		}
		if _, err := ParseLevel(string(u.Student.Level)); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrInvalidUser, err)
		}
		if u.Student.Points < 0 {
			return fmt.Errorf("%w: points must be non-negative", apperr.ErrInvalidUser)
		}
	case RoleInstructor:
		if u.Instructor == nil {
			return fmt.Errorf("%w: instructor without instructor profile", apperr.ErrInvalidUser)
		}
	case RoleAdmin:
		if u.Admin == nil {
			return fmt.Errorf("%w: admin without admin profile", apperr.ErrInvalidUser)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidUser, u.Role)
	}
	return nil
}

type Question struct {
	QuestionID          int64
	Content             string
	Options             []string
	CorrectOptionIndex  int
	SelectedOptionIndex int
	QuizID              int64
}

// QuizAttempt is the attempt aggregate. AttemptID 0 means not yet persisted.
type QuizAttempt struct {
	AttemptID          int64
	UserID             int64
	QuizID             int64
	Timestamp          time.Time
	Score              int
	DurationAttempted  float64
	QuestionsAttempted []Question
}

// AnsweredQuestion is the attempt-owned part of an answer: what was picked for which question.
type AnsweredQuestion struct {
	QuestionID          int64
	SelectedOptionIndex int
}

// Enrich overlays the selected index from the answer onto the catalog question.
func Enrich(answer AnsweredQuestion, catalog Question) Question {
	catalog.QuestionID = answer.QuestionID
	catalog.SelectedOptionIndex = answer.SelectedOptionIndex
	return catalog
}
