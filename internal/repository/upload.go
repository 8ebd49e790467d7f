package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

const uploadColumns = `id, blob_ref, filename, title, mime_type, scope, project_id, document_id,
	document_number, tags, status, COALESCE(error, ''), created_at, updated_at`

// UploadRepository persists upload records.
type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

// Create inserts the upload.
func (r *UploadRepository) Create(ctx context.Context, up *model.Upload) error {
	now := time.Now().UTC()
	if up.CreatedAt.IsZero() {
		up.CreatedAt = now
	}
	up.UpdatedAt = now
	tags := up.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO uploads (id, blob_ref, filename, title, mime_type, scope, project_id, document_id,
			document_number, tags, status, error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12, ''),$13,$14)
	`, up.ID, up.BlobRef, up.Filename, up.Title, up.MimeType, up.Scope, up.ProjectID, up.DocumentID,
		up.DocumentNumber, tags, up.Status, up.Error, up.CreatedAt, up.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// Get returns an upload by id.
func (r *UploadRepository) Get(ctx context.Context, id string) (*model.Upload, error) {
	up, err := scanUpload(r.pool.QueryRow(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select upload: %w", err)
	}
	return up, nil
}

// SetStatus updates status and error message.
func (r *UploadRepository) SetStatus(ctx context.Context, id string, status model.Status, msg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE uploads SET status=$1, error=NULLIF($2, ''), updated_at=$3 WHERE id=$4
	`, status, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// List returns uploads newest first.
func (r *UploadRepository) List(ctx context.Context, f model.UploadFilter) ([]model.Upload, error) {
	var (
		where []string
		args  []any
	)
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		where = append(where, fmt.Sprintf("project_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	query := `SELECT ` + uploadColumns + ` FROM uploads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()
	out := make([]model.Upload, 0)
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, *up)
	}
	return out, rows.Err()
}

func scanUpload(row pgx.Row) (*model.Upload, error) {
	var up model.Upload
	err := row.Scan(&up.ID, &up.BlobRef, &up.Filename, &up.Title, &up.MimeType, &up.Scope, &up.ProjectID,
		&up.DocumentID, &up.DocumentNumber, &up.Tags, &up.Status, &up.Error, &up.CreatedAt, &up.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &up, nil
}
