package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicate is returned when an insert or update violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidReference is returned when a foreign key points at a missing row.
	ErrInvalidReference = errors.New("invalid reference")
)

// querier is satisfied by both *sql.DB and *sql.Tx so cascade helpers can run
// inside or outside a transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

// classify maps SQLite constraint failures onto the package sentinels.
func classify(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
	}
	return err
}

// assignments collects the column updates for a partial update.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

// apply writes the collected columns plus updated_at. It reports whether a
// row with the given id exists.
func (a *assignments) apply(q querier, table, id string) (bool, error) {
	cols := append(a.cols[:len(a.cols):len(a.cols)], "updated_at = ?")
	args := append(a.args[:len(a.args):len(a.args)], time.Now().UTC(), id)

	result, err := q.Exec(`UPDATE `+table+` SET `+strings.Join(cols, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, classify(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
