package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// namespace maps a scope to its index namespace. Project namespaces are the
// project's own entry id; only resolved ids are cached.
func (s *Service) namespace(ctx context.Context, scope model.Scope, projectID string) (string, error) {
	switch scope {
	case model.ScopeGlobal:
		return index.GlobalNamespace, nil
	case model.ScopeProject:
	default:
		return "", fmt.Errorf("%w: scope %q", ErrInvalidRequest, scope)
	}
	if projectID == "" {
		return "", fmt.Errorf("%w: project scope without project id", ErrInvalidRequest)
	}
	if ns, ok := s.nsCache.Get(projectID); ok {
		return ns.(string), nil
	}
	if s.projects == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingProject, projectID)
	}
	p, err := s.projects.Get(ctx, projectID)
	if errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrMissingProject, projectID)
	}
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if p.IndexEntryID == "" {
		return "", fmt.Errorf("%w: %s", ErrNamespaceNotReady, projectID)
	}
	s.nsCache.Set(projectID, p.IndexEntryID, cache.DefaultExpiration)
	return p.IndexEntryID, nil
}
