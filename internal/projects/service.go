// Package projects creates projects and indexes their descriptors so that a
// project's namespace exists before any document can reference it.
package projects

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/textnorm"
)

var ErrInvalidInput = errors.New("invalid project input")

// Store persists projects.
type Store interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id string) (*model.Project, error)
	SetIndexEntry(ctx context.Context, id, entryID string) error
	List(ctx context.Context) ([]model.Project, error)
}

type CreateInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Contractor  string `json:"contractor" validate:"max=200"`
}

type Service struct {
	store    Store
	idx      index.Index
	log      *zap.Logger
	validate *validator.Validate
}

func NewService(store Store, idx index.Index, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		idx:      idx,
		log:      log.With(zap.String("component", "projects")),
		validate: validator.New(),
	}
}

// Create stores the project and indexes it before returning, so the returned
// project always carries its namespace id.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Project, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p := &model.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Contractor:  strings.TrimSpace(in.Contractor),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if err := s.index(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("project created", zap.String("projectId", p.ID), zap.String("namespace", p.IndexEntryID))
	return p, nil
}

// EnsureIndexed indexes a project created before its descriptor could be
// added, for example after an index outage.
func (s *Service) EnsureIndexed(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IndexEntryID != "" {
		return p, nil
	}
	if err := s.index(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Project, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Project, error) {
	return s.store.List(ctx)
}

func (s *Service) index(ctx context.Context, p *model.Project) error {
	text := Descriptor(p)
	res, err := s.idx.Add(ctx, index.AddRequest{
		Namespace: index.ProjectsNamespace,
		Text:      text,
		Key:       p.ID,
		Title:     p.Name,
		// The id is part of the fingerprint so identical descriptors still
		// get separate namespaces.
		Fingerprint: textnorm.Fingerprint(p.ID + ":" + textnorm.Normalize(text)),
		Metadata:    map[string]string{"projectId": p.ID, "name": p.Name},
	})
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}
	if err := s.store.SetIndexEntry(ctx, p.ID, res.EntryID); err != nil {
		return fmt.Errorf("store project namespace: %w", err)
	}
	p.IndexEntryID = res.EntryID
	return nil
}

var roadPattern = regexp.MustCompile(`(?i)\b(S|A|DK)\s?-?\s?(\d{1,3})\b`)

// Descriptor renders the text indexed for a project. Road numbers found in
// the name or description are repeated in their common spellings so a search
// for "S19" also finds "S-19".
func Descriptor(p *model.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.Name)
	if p.Contractor != "" {
		fmt.Fprintf(&b, "Contractor: %s\n", p.Contractor)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if kw := RoadKeywords(p.Name + " " + p.Description); len(kw) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(kw, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RoadKeywords returns sorted spelling variants of every road number in text.
func RoadKeywords(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range roadPattern.FindAllStringSubmatch(text, -1) {
		prefix, num := strings.ToUpper(m[1]), m[2]
		for _, v := range []string{prefix + num, prefix + "-" + num, prefix + " " + num} {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
