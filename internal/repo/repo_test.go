package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
)

func TestDecodeApp(t *testing.T) {
	id := uuid.New()
	rec := &domain.AppRecord{ID: id, Name: "shop", DSL: []byte(`{"items": [{"id": "page"}]}`)}

	app, err := DecodeApp(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.ID != id.String() {
		t.Errorf("app id should default to record id, got %q", app.ID)
	}
	if len(app.Items) != 1 || app.Items[0].ID != "page" {
		t.Errorf("unexpected items: %+v", app.Items)
	}
}

func TestDecodeApp_Invalid(t *testing.T) {
	rec := &domain.AppRecord{ID: uuid.New(), DSL: []byte(`{"items": [{"id": "a"}, {"id": "a"}]}`)}

	_, err := DecodeApp(rec)
	if !errors.Is(err, ErrInvalidDSL) {
		t.Errorf("expected ErrInvalidDSL, got %v", err)
	}
	if !errors.Is(err, engine.ErrDuplicateNodeID) {
		t.Errorf("expected wrapped ErrDuplicateNodeID, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("expected unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil is not unique violation")
	}
}
