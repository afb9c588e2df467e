package services

import (
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PasswordCost is the bcrypt cost for new password hashes. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to hash password")
	}
	return string(hashed), nil
}

// lookupError converts a repository lookup failure into the error reported to callers.
func lookupError(err error, resource string, id uint64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierrors.NotFound(resource, id)
	}
	return pkgerrors.Wrapf(err, "failed to find %s", strings.ToLower(resource))
}

// isDuplicateKey reports a unique index violation. Drivers without an error
// translator still mention the constraint in their message.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique")
}
