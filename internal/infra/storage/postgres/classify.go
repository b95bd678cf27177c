package postgres

import (
	"database/sql/driver"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openstatushq/pulse/internal/infra/retry"
)

// Classify maps PostgreSQL errors to retry outcomes by SQLSTATE. Errors with
// no SQLSTATE, or one outside the known classes, are left to the default
// classifier.
func Classify(err error) retry.Outcome {
	if err == nil {
		return retry.Outcome{Kind: retry.OutcomeSuccess}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return retry.Outcome{Kind: retry.OutcomeRetryable, Reason: "bad_conn", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return retry.Outcome{}
	}

	reason := "sqlstate_" + pgErr.Code
	switch {
	case pgErr.Code == "40001", // serialization_failure
		pgErr.Code == "40P01",     // deadlock_detected
		pgErr.Code == "57P01",     // admin_shutdown
		pgErr.Code == "53300",     // too_many_connections
		class(pgErr.Code) == "08": // connection exception
		return retry.Outcome{Kind: retry.OutcomeRetryable, Reason: reason, Cause: err}
	case class(pgErr.Code) == "22", // data exception
		class(pgErr.Code) == "23", // integrity constraint violation
		class(pgErr.Code) == "42": // syntax error or access rule violation
		return retry.Outcome{Kind: retry.OutcomeTerminal, Reason: reason, Cause: err}
	}
	return retry.Outcome{}
}

func class(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}
