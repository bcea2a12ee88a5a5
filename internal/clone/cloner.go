// Package clone maps a workspace's integrations onto another workspace,
// reusing compatible integrations and creating unconfigured copies otherwise.
package clone

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
)

// Repository is the persistence the Cloner needs.
type Repository interface {
	ListIntegrations(ctx context.Context, workspaceID string) ([]*integration.Integration, error)
	// CreateIntegrations inserts all integrations in one transaction.
	CreateIntegrations(ctx context.Context, integrations []*integration.Integration) error
}

// Mapping maps origin integrations to their target-workspace counterparts.
type Mapping struct {
	ByName map[string]*integration.Integration
	ByID   map[string]*integration.Integration
}

// Cloner matches origin integrations against a target workspace.
type Cloner struct {
	repo   Repository
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// NewCloner creates a Cloner.
func NewCloner(repo Repository, logger *zap.Logger) *Cloner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cloner{
		repo:   repo,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// CloneForWorkspace returns, for every origin integration, the target
// integration to use in targetWorkspaceID. Each origin is matched, in order, by
// exact name and kind, then by kind alone; otherwise an unconfigured copy is
// created. Integrations created earlier in the batch are candidates for later
// origins. All creations are persisted together or not at all.
func (c *Cloner) CloneForWorkspace(
	ctx context.Context,
	origins []*integration.Integration,
	targetWorkspaceID string,
	authorID string,
) (*Mapping, error) {
	targets, err := c.repo.ListIntegrations(ctx, targetWorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("CloneForWorkspace: %w", err)
	}

	m := &Mapping{
		ByName: make(map[string]*integration.Integration, len(origins)),
		ByID:   make(map[string]*integration.Integration, len(origins)),
	}
	var created []*integration.Integration
	for _, origin := range origins {
		target := matchExact(origin, targets)
		if target == nil {
			target = matchKind(origin, targets)
		}
		if target == nil {
			target = c.unconfiguredCopy(origin, targetWorkspaceID, authorID, targets)
			targets = append(targets, target)
			created = append(created, target)
		}
		m.ByName[origin.Name] = target
		m.ByID[origin.ID] = target
	}

	if len(created) > 0 {
		if err := c.repo.CreateIntegrations(ctx, created); err != nil {
			return nil, fmt.Errorf("CloneForWorkspace: %w", err)
		}
		c.logger.Info("created integrations for clone",
			zap.String("workspace_id", targetWorkspaceID),
			zap.Int("created", len(created)),
			zap.Int("origins", len(origins)),
		)
	}
	return m, nil
}

func matchExact(origin *integration.Integration, targets []*integration.Integration) *integration.Integration {
	for _, t := range targets {
		if t.Name == origin.Name && integration.SameKind(origin, t) {
			return t
		}
	}
	return nil
}

func matchKind(origin *integration.Integration, targets []*integration.Integration) *integration.Integration {
	for _, t := range targets {
		if integration.SameKind(origin, t) {
			return t
		}
	}
	return nil
}

func (c *Cloner) unconfiguredCopy(
	origin *integration.Integration,
	workspaceID string,
	authorID string,
	existing []*integration.Integration,
) *integration.Integration {
	now := c.now().UTC()
	return &integration.Integration{
		ID:            c.newID(),
		WorkspaceID:   workspaceID,
		Name:          uniqueName(origin.NeutralName(), existing),
		Type:          origin.Type,
		Configuration: integration.Unconfigured(origin.Configuration),
		AuthorID:      authorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// uniqueName returns base, or base_N with the smallest N >= 1 not taken.
func uniqueName(base string, existing []*integration.Integration) string {
	taken := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		taken[e.Name] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
