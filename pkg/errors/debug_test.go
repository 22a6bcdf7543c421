package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDiagnoseCapturesPostgresFault(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_phase_transitions_version", TableName: "phase_transitions"}
	err := fmt.Errorf("record transition: %w", Wrap(CodeConflict, pgErr, "duplicate transition"))

	diag := Diagnose(err)
	if diag.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", diag.Code)
	}
	if len(diag.Causes) != 3 {
		t.Fatalf("expected 3 causes, got %d", len(diag.Causes))
	}
	if diag.DB == nil || diag.DB.SQLState != "23505" || diag.DB.Table != "phase_transitions" {
		t.Fatalf("unexpected db fault %+v", diag.DB)
	}
	fields := diag.Fields()
	if fields["pg_constraint"] != "uq_phase_transitions_version" {
		t.Fatalf("constraint missing from fields: %v", fields)
	}
}

func TestDiagnosePlainError(t *testing.T) {
	diag := Diagnose(fmt.Errorf("boom"))
	if diag.DB != nil {
		t.Fatalf("expected no db fault")
	}
	if diag.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", diag.Code)
	}
	if _, ok := diag.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted without a driver error")
	}
	if got := Diagnose(nil); got.Summary != "" || got.Causes != nil {
		t.Fatalf("nil error should produce empty diagnostic")
	}
}
