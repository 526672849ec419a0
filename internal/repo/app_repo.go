package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
)

// AppRepo — репозиторий DSL приложений (таблица apps).
type AppRepo struct {
	pool *pgxpool.Pool
}

// NewAppRepo создаёт новый AppRepo.
func NewAppRepo(pool *pgxpool.Pool) *AppRepo {
	return &AppRepo{pool: pool}
}

// Create сохраняет новое приложение.
// ID и время создания заполняются, если не заданы.
func (r *AppRepo) Create(ctx context.Context, rec *domain.AppRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	query := `
		INSERT INTO apps (id, name, dsl, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, rec.ID, rec.Name, []byte(rec.DSL), rec.CreatedAt, rec.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("app %q: %w", rec.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert app: %w", err)
	}
	return nil
}

// GetByID возвращает приложение по ID.
func (r *AppRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AppRecord, error) {
	query := `
		SELECT id, name, dsl, created_at, updated_at
		FROM apps
		WHERE id = $1
	`
	rec, err := scanApp(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get app by id: %w", err)
	}
	return rec, nil
}

// List возвращает приложения без DSL, новые первыми.
func (r *AppRepo) List(ctx context.Context) ([]domain.AppRecord, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM apps
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []domain.AppRecord
	for rows.Next() {
		var rec domain.AppRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, rec)
	}
	return apps, rows.Err()
}

// UpdateDSL заменяет DSL приложения.
func (r *AppRepo) UpdateDSL(ctx context.Context, id uuid.UUID, dsl json.RawMessage) error {
	query := `
		UPDATE apps
		SET dsl = $2, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, []byte(dsl))
	if err != nil {
		return fmt.Errorf("update app dsl: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет приложение.
func (r *AppRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadApp загружает и разбирает DSL приложения.
// Каждый вызов возвращает новое независимое дерево.
func (r *AppRepo) LoadApp(ctx context.Context, id uuid.UUID) (*domain.App, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return DecodeApp(rec)
}

// DecodeApp разбирает DSL записи.
func DecodeApp(rec *domain.AppRecord) (*domain.App, error) {
	app, err := engine.ParseApp(rec.DSL)
	if err != nil {
		return nil, fmt.Errorf("%w: app %s: %w", ErrInvalidDSL, rec.ID, err)
	}
	if app.ID == "" {
		app.ID = rec.ID.String()
	}
	return app, nil
}

func scanApp(row pgx.Row) (*domain.AppRecord, error) {
	var rec domain.AppRecord
	var dsl []byte
	if err := row.Scan(&rec.ID, &rec.Name, &dsl, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.DSL = dsl
	return &rec, nil
}
