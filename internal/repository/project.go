package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// ProjectRepository persists projects.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (id, name, description, contractor, index_entry_id, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6)
	`, p.ID, p.Name, p.Description, p.Contractor, p.IndexEntryID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, contractor, COALESCE(index_entry_id, ''), created_at
		FROM projects WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Contractor, &p.IndexEntryID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select project: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepository) SetIndexEntry(ctx context.Context, id, entryID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET index_entry_id=$1 WHERE id=$2`, entryID, id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, contractor, COALESCE(index_entry_id, ''), created_at
		FROM projects ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Project, error) {
		var p model.Project
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Contractor, &p.IndexEntryID, &p.CreatedAt)
		return p, err
	})
}
