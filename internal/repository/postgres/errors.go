package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"admissions/internal/common"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func wrapError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return common.NewError(common.CodeConflict, conflictMessage(pgErr.ConstraintName), err)
		case foreignKeyViolation:
			return common.NewError(common.CodeValidation, "referenced record does not exist", err)
		}
	}
	return common.NewError(common.CodeInternal, "failed to "+action, err)
}

func conflictMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "email"):
		return "email already in use"
	case strings.Contains(constraint, "code"):
		return "program code already exists"
	case strings.Contains(constraint, "numero"):
		return "candidature number already taken"
	case strings.Contains(constraint, "type"):
		return "document of this type already exists"
	default:
		return "record already exists"
	}
}

func notFoundOr(err error, entity, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewError(common.CodeNotFound, entity+" not found", err)
	}
	return wrapError(err, action)
}

func expectAffected(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return common.NewError(common.CodeNotFound, entity+" not found", sql.ErrNoRows)
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.NewError(common.CodeInternal, "failed to commit transaction", err)
	}
	return nil
}

func uuidArray(ids []common.UUID) any {
	return pq.Array(common.UUIDStrings(ids))
}

func toUUIDs(values []string) []common.UUID {
	ids := make([]common.UUID, 0, len(values))
	for _, value := range values {
		ids = append(ids, common.UUID(value))
	}
	return ids
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullUUID(id common.UUID) any {
	if id.IsZero() {
		return nil
	}
	return id.String()
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) arg(value any) string {
	w.args = append(w.args, value)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) and(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains matches term as a literal substring of any of columns, ignoring
// case.
func (w *where) contains(term string, columns ...string) {
	p := w.arg("%" + likeEscaper.Replace(term) + "%")
	matches := make([]string, len(columns))
	for i, column := range columns {
		matches[i] = column + " ILIKE " + p + ` ESCAPE '\'`
	}
	w.and("(" + strings.Join(matches, " OR ") + ")")
}

// equalFold compares column with value ignoring case.
func (w *where) equalFold(column, value string) {
	w.and(column + " ILIKE " + w.arg(likeEscaper.Replace(value)) + ` ESCAPE '\'`)
}

// paginate appends LIMIT/OFFSET when limit is positive. A non-positive limit
// returns every row.
func (w *where) paginate(page, limit int) string {
	if limit <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	return " LIMIT " + w.arg(limit) + " OFFSET " + w.arg((page-1)*limit)
}
