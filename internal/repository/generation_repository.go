package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/basel-ax/biomio/internal/domain"
)

// GenerationRepository defines the interface for generation journal access
type GenerationRepository interface {
	domain.Journal
	EnsureSchema(ctx context.Context) error
	ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error)
	ListByStatus(ctx context.Context, status domain.GenerationStatus, limit int) ([]domain.GenerationRecord, error)
}

// PostgresGenerationRepository implements GenerationRepository for PostgreSQL
type PostgresGenerationRepository struct {
	db *sql.DB
}

var _ GenerationRepository = (*PostgresGenerationRepository)(nil)

// NewPostgresGenerationRepository creates a new PostgreSQL generation repository
func NewPostgresGenerationRepository(db *sql.DB) *PostgresGenerationRepository {
	return &PostgresGenerationRepository{db: db}
}

// EnsureSchema creates the generations table if it does not exist
func (r *PostgresGenerationRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS generations (
			id           SERIAL PRIMARY KEY,
			prompt_index INTEGER NOT NULL,
			prompt       TEXT NOT NULL DEFAULT '',
			image_url    TEXT NOT NULL DEFAULT '',
			image_file   TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			message      TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create generations table: %w", err)
	}
	return nil
}

// Record stores the outcome of one fan-out task
func (r *PostgresGenerationRepository) Record(ctx context.Context, rec domain.GenerationRecord) error {
	query := `
		INSERT INTO generations (prompt_index, prompt, image_url, image_file, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.PromptIndex, rec.Prompt, rec.ImageURL, rec.ImageFile, string(rec.Status), rec.Message, time.Now())
	return err
}

// ListRecent retrieves the most recent records
func (r *PostgresGenerationRepository) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	query := `
		SELECT id, prompt_index, prompt, image_url, image_file, status, message
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1
	`

	return r.list(ctx, query, limit)
}

// ListByStatus retrieves the most recent records with the given status, e.g. the
// prompts rejected for content policy reasons
func (r *PostgresGenerationRepository) ListByStatus(ctx context.Context, status domain.GenerationStatus, limit int) ([]domain.GenerationRecord, error) {
	query := `
		SELECT id, prompt_index, prompt, image_url, image_file, status, message
		FROM generations
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.list(ctx, query, string(status), limit)
}

func (r *PostgresGenerationRepository) list(ctx context.Context, query string, args ...any) ([]domain.GenerationRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.GenerationRecord
	for rows.Next() {
		var rec domain.GenerationRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.PromptIndex, &rec.Prompt, &rec.ImageURL, &rec.ImageFile, &status, &rec.Message); err != nil {
			return nil, err
		}
		rec.Status = domain.GenerationStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
