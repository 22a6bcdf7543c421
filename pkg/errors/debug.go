package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostic flattens an error chain for the request log. Postgres fields are
// only populated when a driver error sits somewhere in the chain.
type Diagnostic struct {
	Summary string
	Code    Code
	Causes  []string
	DB      *DBFault
}

// DBFault is the subset of a driver error worth logging.
type DBFault struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Diagnose(err error) Diagnostic {
	if err == nil {
		return Diagnostic{}
	}
	diag := Diagnostic{Summary: err.Error(), Code: CodeOf(err)}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		diag.Causes = append(diag.Causes, fmt.Sprintf("%T: %v", cur, cur))
	}
	diag.DB = dbFault(err)
	return diag
}

// Fields renders the diagnostic as structured log fields.
func (d Diagnostic) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Summary,
		"error_code":  d.Code,
		"error_chain": d.Causes,
	}
	if d.DB != nil {
		fields["pg_code"] = d.DB.SQLState
		fields["pg_constraint"] = d.DB.Constraint
		fields["pg_table"] = d.DB.Table
		fields["pg_column"] = d.DB.Column
		fields["pg_detail"] = d.DB.Detail
		fields["pg_message"] = d.DB.Message
	}
	return fields
}

func dbFault(err error) *DBFault {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return &DBFault{
			SQLState:   pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &DBFault{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
