package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/rfberaldo/sqlz"
)

const queryTimeout = time.Second * 5

/*
errAlreadyApplied aborts a unit of work whose compare-and-set found nothing
left to change. It never reaches callers.
*/
var errAlreadyApplied = errors.New("change already applied")

/*
execer is satisfied by both *sqlz.DB and *sqlz.Tx so a write can join the
caller's unit of work when there is one.
*/
type execer interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	Query(ctx context.Context, dest any, query string, args ...any) error
	QueryRow(ctx context.Context, dest any, query string, args ...any) error
}

type idRow struct {
	ID uint `db:"id"`
}

type countRow struct {
	Count int `db:"count"`
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

/*
queryAll runs a multi-row query, treating "no rows" as an empty result.
*/
func queryAll(ctx context.Context, q querier, dest any, query string, args ...any) error {
	if err := q.Query(ctx, dest, query, args...); err != nil && !sqlz.IsNotFound(err) {
		return err
	}

	return nil
}

func rowsAffected(result sql.Result) int64 {
	if result == nil {
		return 0
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}

	return n
}

/*
storageError turns a raw storage failure into a workflow error. Missing
rows become NotFound with the given reason; anything else is transient.
*/
func storageError(err error, notFoundReason string, format string, args ...any) error {
	if sqlz.IsNotFound(err) {
		return models.NotFound(notFoundReason)
	}

	return models.Transient(err, format, args...)
}

func nullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}

	return database.Timestamp(*t)
}
