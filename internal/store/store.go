package store

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

func newID() string {
	return uuid.NewString()
}

// sqlUUID is a SQL expression yielding a random version 4 UUID string. It is
// evaluated per row, so set-based inserts get ids in the same format as newID.
const sqlUUID = `lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' ||
	substr(hex(randomblob(2)), 2) || '-' || substr('89ab', 1 + (abs(random()) % 4), 1) ||
	substr(hex(randomblob(2)), 2) || '-' || hex(randomblob(6)))`

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// setClause accumulates "col = ?" assignments for partial updates.
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setClause) empty() bool {
	return len(s.cols) == 0
}

// sql renders the assignment list, always touching updated_at.
func (s *setClause) sql() string {
	return strings.Join(append(s.cols, "updated_at = CURRENT_TIMESTAMP"), ", ")
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
