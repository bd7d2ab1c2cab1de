package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		expose    bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, expose: true, detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusBadRequest, expose: true, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, expose: true},
		{code: CodeForbidden, status: http.StatusForbidden, expose: true},
		{code: CodeNotFound, status: http.StatusNotFound, expose: true},
		{code: CodeConflict, status: http.StatusConflict, expose: true},
		{code: CodeAssignmentConflict, status: http.StatusConflict, expose: true},
		{code: CodeIdempotency, status: http.StatusConflict, expose: true, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.ExposeMessage != tt.expose {
			t.Fatalf("code %s expected expose %v got %v", tt.code, tt.expose, meta.ExposeMessage)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(CodeValidation, "invalid delivery status %q", "teleported")
	if err.Message() != `invalid delivery status "teleported"` {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeMatchesWrappedTypedError(t *testing.T) {
	inner := New(CodeAssignmentConflict, "delivery already assigned")
	wrapped := fmt.Errorf("assign: %w", inner)
	if !IsCode(wrapped, CodeAssignmentConflict) {
		t.Fatalf("expected IsCode to see the wrapped code")
	}
	if IsCode(wrapped, CodeNotFound) {
		t.Fatalf("unexpected match for a different code")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           PGUniqueViolation,
		ConstraintName: "ux_transactions_reference",
		TableName:      "transactions",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("append: %w", pgErr), "duplicate reference")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %q", d.Code)
	}
	if d.PG == nil || d.PG.Constraint != "ux_transactions_reference" || d.PG.Code != PGUniqueViolation {
		t.Fatalf("expected pg details, got %+v", d.PG)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", d.Chain)
	}
	fields := d.Fields()
	if fields["pg_constraint"] != "ux_transactions_reference" {
		t.Fatalf("expected pg_constraint field, got %v", fields)
	}
}

func TestDumpWithoutPostgresOmitsPGFields(t *testing.T) {
	d := Dump(stdErrors.New("plain"))
	if d.PG != nil {
		t.Fatalf("unexpected pg details %+v", d.PG)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatal("pg_code should be omitted")
	}
	if Dump(nil).TopMessage != "" {
		t.Fatal("nil error should produce empty dump")
	}
}
