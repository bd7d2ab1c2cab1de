package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/packdrop-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique index violation, and when
// constraintName is set, whether it names that index. Typed Postgres errors
// are checked by SQLSTATE; SQLite only exposes the message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresError(err); ok {
		if pg.Code != pkgerrors.PGUniqueViolation {
			return false
		}
		return constraintName == "" || pg.Constraint == constraintName
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsCheckViolation reports whether err came from a CHECK constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.PostgresError(err); ok {
		return pg.Code == pkgerrors.PGCheckViolation
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}
