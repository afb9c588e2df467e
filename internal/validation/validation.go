// Package validation holds the field rules for users and tasks.
//
// Every check returns Violations, an ordered list of human readable messages.
// An empty list means the candidate state is valid.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/models"
)

type Violations []string

func (v Violations) Valid() bool {
	return len(v) == 0
}

func (v *Violations) Add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

// Mode selects which rules apply to a user candidate.
type Mode int

const (
	OnCreate Mode = iota
	OnUpdate
)

// UserFields is the candidate state of a user. Password is nil when it is
// not being set.
type UserFields struct {
	Username             string
	Email                string
	Password             *string
	PasswordConfirmation *string
}

type TaskFields struct {
	Title  string
	Status models.TaskStatus
}

var validate = validator.New()

func ValidateUser(f UserFields, mode Mode) Violations {
	var v Violations

	username := strings.TrimSpace(f.Username)
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		v.Add("Username can't be blank")
	case n < constants.UsernameMinLength:
		v.Add("Username is too short (minimum is %d characters)", constants.UsernameMinLength)
	case n > constants.UsernameMaxLength:
		v.Add("Username is too long (maximum is %d characters)", constants.UsernameMaxLength)
	}

	email := strings.TrimSpace(f.Email)
	if email == "" {
		v.Add("Email can't be blank")
	} else if !ValidEmail(email) {
		v.Add("Email is invalid")
	}

	switch {
	case f.Password == nil || *f.Password == "":
		if mode == OnCreate || f.Password != nil {
			v.Add("Password can't be blank")
		}
	case len(*f.Password) > constants.PasswordMaxBytes:
		v.Add("Password is too long (maximum is %d bytes)", constants.PasswordMaxBytes)
	}

	if f.Password != nil && f.PasswordConfirmation != nil && *f.Password != *f.PasswordConfirmation {
		v.Add("Password confirmation doesn't match Password")
	}

	return v
}

func ValidateTask(f TaskFields) Violations {
	var v Violations

	title := strings.TrimSpace(f.Title)
	if title == "" {
		v.Add("Title can't be blank")
	} else if utf8.RuneCountInString(f.Title) > constants.TitleMaxLength {
		v.Add("Title is too long (maximum is %d characters)", constants.TitleMaxLength)
	}

	if !f.Status.Valid() {
		v.Add("Status is not included in the list")
	}

	return v
}

// ValidEmail checks address syntax only.
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Messages shared with the services for checks that need the database.
const (
	UsernameTaken = "Username has already been taken"
	EmailTaken    = "Email has already been taken"
	UserMustExist = "User must exist"
)
