// Package sqlxrepos implements the core repositories on top of PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
)

type repo struct {
	db *sqlx.DB
}

// getExec returns the transaction handed by the service, if any, or the DB.
func (r repo) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return r.db
}

// trapNoRowsErr maps sql.ErrNoRows to notFoundErr.
func trapNoRowsErr(err, notFoundErr error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFoundErr
	}
	return errors.Wrap(err, msg)
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func newID() string {
	return uuid.New().String()
}

// where accumulates "?" placeholder conditions, AND-ed together.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE (" + strings.Join(w.conds, ") AND (") + ")"
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		list = append(list, ord.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// selectQ expands the IN (?) args of query, rebinds it for postgres & scans the results into dest.
func selectQ(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	return sqlx.SelectContext(ctx, exec, dest, sqlx.Rebind(sqlx.DOLLAR, query), args...)
}

func getQ(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	return sqlx.GetContext(ctx, exec, dest, sqlx.Rebind(sqlx.DOLLAR, query), args...)
}

func execQ(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (sql.Result, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding query")
	}
	return exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
}

// namedExec runs a named (:field) query with the fields of arg.
func namedExec(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, exec, query, arg)
}

func rowsAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}
