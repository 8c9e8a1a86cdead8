// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// knowing which SQL driver produced them.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when the requested row does not exist.
// Services translate it into a NotFound error for the caller.
var ErrNotFound = errors.New("not found")

// DuplicateError reports a unique constraint violation.  Field names the
// logical key that collided: "username", "email", "external_id" or
// "favorite".
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string { return e.Field + " already exists" }

func (e *DuplicateError) Unwrap() error { return e.Err }

// IsDuplicate reports whether err is a DuplicateError on field.  An empty
// field matches any duplicate.
func IsDuplicate(err error, field string) bool {
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		return false
	}
	return field == "" || dup.Field == field
}

// duplicateKeys maps fragments of index or column names to the logical
// field reported in DuplicateError.  Order matters: the first match wins.
var duplicateKeys = []struct{ fragment, field string }{
	{"external", "external_id"},
	{"favorites", "favorite"},
	{"username", "username"},
	{"email", "email"},
}

// classify converts a driver unique violation into *DuplicateError and
// returns every other error unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	key, ok := uniqueViolationKey(err)
	if !ok {
		return err
	}
	for _, k := range duplicateKeys {
		if strings.Contains(key, k.fragment) {
			return &DuplicateError{Field: k.field, Err: err}
		}
	}
	return &DuplicateError{Field: "record", Err: err}
}

// uniqueViolationKey extracts the index (MySQL) or column list (SQLite)
// from a unique violation.  The value part of the MySQL message is
// skipped so user data never influences the classification.
func uniqueViolationKey(err error) (string, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != 1062 {
			return "", false
		}
		msg := strings.ToLower(myErr.Message)
		if i := strings.LastIndex(msg, "for key"); i >= 0 {
			return msg[i:], true
		}
		return "", true
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		default:
			return "", false
		}
		msg := strings.ToLower(liteErr.Error())
		if i := strings.Index(msg, "failed:"); i >= 0 {
			return msg[i:], true
		}
		return "", true
	}
	return "", false
}
