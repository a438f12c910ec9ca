package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/pmarren/courier/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return newPostgresStore(mock), mock
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT value FROM courier_kv").
		WithArgs("sessions").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	value, err := store.Get(context.Background(), "sessions")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if string(value) != "[]" {
		t.Errorf("unexpected value: %q", value)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Get_Missing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT value FROM courier_kv").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestPostgresStore_Set(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO courier_kv").
		WithArgs("autosave_enabled", []byte("true")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Set(context.Background(), "autosave_enabled", []byte("true")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_Set_Error(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO courier_kv").
		WithArgs("sessions", []byte(`[]`)).
		WillReturnError(errors.New("connection reset"))

	err := store.Set(context.Background(), "sessions", []byte(`[]`))
	if err == nil {
		t.Error("expected error")
	}
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM courier_kv").
		WithArgs("analytics_events").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), "analytics_events"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS courier_kv").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	if err := store.ensureSchema(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
