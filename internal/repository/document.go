package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

const documentColumns = `id, scope, project_id, filename, title, document_number, tags, status,
	COALESCE(error, ''), COALESCE(index_entry_id, ''), COALESCE(previous_entry_id, ''), blob_ref, mime_type, attempt,
	created_at, updated_at`

// DocumentRepository is the Postgres document store.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Prepare upserts on the natural key. SET expressions see the old row, so the
// entry being replaced moves into previous_entry_id.
func (r *DocumentRepository) Prepare(ctx context.Context, p model.PrepareParams) (model.Claim, error) {
	now := time.Now().UTC()
	attempt := uuid.NewString()
	var (
		blobRef, mimeType string
		replaceMeta       bool
	)
	if p.Metadata != nil {
		blobRef, mimeType, replaceMeta = p.Metadata.BlobRef, p.Metadata.MimeType, true
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	claim := model.Claim{Attempt: attempt}
	var previous *string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO documents (id, scope, project_id, filename, title, document_number, tags, status,
			error, index_entry_id, blob_ref, mime_type, attempt, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,NULL,$9,$10,$11,$12,$12)
		ON CONFLICT (scope, project_id, filename) DO UPDATE SET
			title = EXCLUDED.title,
			document_number = EXCLUDED.document_number,
			tags = EXCLUDED.tags,
			status = EXCLUDED.status,
			error = NULL,
			index_entry_id = NULL,
			previous_entry_id = COALESCE(documents.index_entry_id, documents.previous_entry_id),
			blob_ref = CASE WHEN $13 THEN EXCLUDED.blob_ref ELSE documents.blob_ref END,
			mime_type = CASE WHEN $13 THEN EXCLUDED.mime_type ELSE documents.mime_type END,
			attempt = EXCLUDED.attempt,
			updated_at = EXCLUDED.updated_at
		RETURNING id, previous_entry_id
	`, uuid.NewString(), p.Scope, p.ProjectID, p.Filename, p.Title, p.DocumentNumber, tags,
		model.StatusProcessing, blobRef, mimeType, attempt, now, replaceMeta,
	).Scan(&claim.DocumentID, &previous)
	if err != nil {
		return model.Claim{}, fmt.Errorf("prepare document: %w", err)
	}
	if previous != nil {
		claim.PreviousEntryID = *previous
	}
	return claim, nil
}

// Finalize applies the outcome only while claim.Attempt is current.
func (r *DocumentRepository) Finalize(ctx context.Context, claim model.Claim, outcome model.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status=$1,
			index_entry_id=NULLIF($2, ''),
			error=NULLIF($3, ''),
			previous_entry_id=NULL,
			updated_at=$4
		WHERE id=$5 AND attempt=$6
	`, outcome.Status(), outcome.EntryID(), outcome.Message(), time.Now().UTC(), claim.DocumentID, claim.Attempt)
	if err != nil {
		return fmt.Errorf("finalize document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)`, claim.DocumentID).Scan(&exists); err != nil {
		return fmt.Errorf("finalize document: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrStaleAttempt
}

// Reclaim swaps in a new attempt while the row is still processing under
// claim.Attempt.
func (r *DocumentRepository) Reclaim(ctx context.Context, claim model.Claim) (model.Claim, error) {
	attempt := uuid.NewString()
	var previous *string
	err := r.pool.QueryRow(ctx, `
		UPDATE documents
		SET attempt=$1,
			error=NULL,
			previous_entry_id=COALESCE(index_entry_id, previous_entry_id),
			index_entry_id=NULL,
			updated_at=$2
		WHERE id=$3 AND attempt=$4 AND status=$5
		RETURNING previous_entry_id
	`, attempt, time.Now().UTC(), claim.DocumentID, claim.Attempt, model.StatusProcessing).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)`, claim.DocumentID).Scan(&exists); err != nil {
			return model.Claim{}, fmt.Errorf("reclaim document: %w", err)
		}
		if !exists {
			return model.Claim{}, model.ErrNotFound
		}
		return model.Claim{}, model.ErrStaleAttempt
	}
	if err != nil {
		return model.Claim{}, fmt.Errorf("reclaim document: %w", err)
	}
	out := model.Claim{DocumentID: claim.DocumentID, Attempt: attempt}
	if previous != nil {
		out.PreviousEntryID = *previous
	}
	return out, nil
}

// Get returns a document by id.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// List returns matching documents, newest first.
func (r *DocumentRepository) List(ctx context.Context, f model.DocumentFilter) ([]model.Document, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Scope != "" {
		add("scope=$%d", f.Scope)
	}
	if f.ProjectID != "" {
		add("project_id=$%d", f.ProjectID)
	}
	if f.Status != "" {
		add("status=$%d", f.Status)
	}
	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return r.query(ctx, query, args...)
}

// ListByStatus returns documents in status, oldest update first. A zero
// updatedBefore disables the age filter.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status model.Status, updatedBefore time.Time) ([]model.Document, error) {
	var cutoff *time.Time
	if !updatedBefore.IsZero() {
		cutoff = &updatedBefore
	}
	return r.query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status=$1 AND ($2::timestamptz IS NULL OR updated_at <= $2)
		ORDER BY updated_at`, status, cutoff)
}

// CountByIndexEntry counts documents other than excludeID that hold entryID as
// their current or previous entry.
func (r *DocumentRepository) CountByIndexEntry(ctx context.Context, entryID, excludeID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE (index_entry_id=$1 OR previous_entry_id=$1) AND id<>$2`, entryID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) query(ctx context.Context, query string, args ...any) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	out := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	err := row.Scan(&doc.ID, &doc.Scope, &doc.ProjectID, &doc.Filename, &doc.Title, &doc.DocumentNumber,
		&doc.Tags, &doc.Status, &doc.Error, &doc.IndexEntryID, &doc.PreviousEntryID, &doc.Metadata.BlobRef, &doc.Metadata.MimeType,
		&doc.Attempt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
