package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

// Repository reads triggers and runs writes in a transaction.
type Repository interface {
	FindCommit(ctx context.Context, workspaceID, commitUUID string) (*Commit, error)
	FindTrigger(ctx context.Context, workspaceID, triggerUUID string) (*DocumentTrigger, error)
	ListDocumentTriggers(ctx context.Context, workspaceID, commitUUID, documentUUID string) ([]*DocumentTrigger, error)
	// WithTx runs fn in a transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository holds the transactional trigger writes.
type TxRepository interface {
	InsertTrigger(ctx context.Context, t *DocumentTrigger) error
	UpdateTrigger(ctx context.Context, t *DocumentTrigger) error
	DeleteTrigger(ctx context.Context, workspaceID, triggerUUID string) error
}

// IntegrationFinder loads integrations by id, returning errs.NotFound when missing.
type IntegrationFinder interface {
	FindIntegrationByID(ctx context.Context, workspaceID, id string) (*integration.Integration, error)
}

// ConfigValidator validates component configurations.
type ConfigValidator interface {
	Validate(ctx context.Context, componentID string, integ *integration.Integration, config map[string]any) ([]props.ConfigurableProp, error)
}

// Deployer manages remote trigger deployments.
type Deployer interface {
	DeployTrigger(ctx context.Context, req remote.DeployRequest) (string, error)
	DestroyTrigger(ctx context.Context, remoteTriggerID string, account integration.Account) error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Repository   Repository
	Integrations IntegrationFinder
	Validator    ConfigValidator
	Deployer     Deployer
	Builder      *Builder
	// WebhookBaseURL is the public base URL deployed triggers call back to.
	WebhookBaseURL string
	Logger         *zap.Logger
}

// Service creates, updates and deletes document triggers.
type Service struct {
	repo           Repository
	integrations   IntegrationFinder
	validator      ConfigValidator
	deployer       Deployer
	builder        *Builder
	webhookBaseURL string
	logger         *zap.Logger
	newID          func() string
	now            func() time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := cfg.Builder
	if builder == nil {
		builder = NewBuilder(nil)
	}
	return &Service{
		repo:           cfg.Repository,
		integrations:   cfg.Integrations,
		validator:      cfg.Validator,
		deployer:       cfg.Deployer,
		builder:        builder,
		webhookBaseURL: strings.TrimRight(cfg.WebhookBaseURL, "/"),
		logger:         logger,
		newID:          uuid.NewString,
		now:            time.Now,
	}
}

// CreateInput describes a new trigger.
type CreateInput struct {
	WorkspaceID   string
	CommitUUID    string
	DocumentUUID  string
	TriggerType   Type
	Configuration json.RawMessage
}

// UpdateInput describes a trigger update. TriggerType is optional; when set it
// must match the existing trigger.
type UpdateInput struct {
	WorkspaceID   string
	CommitUUID    string
	TriggerUUID   string
	TriggerType   Type
	Configuration json.RawMessage
}

// DeleteInput identifies a trigger to delete within an open commit.
type DeleteInput struct {
	WorkspaceID string
	CommitUUID  string
	TriggerUUID string
}

// deployment is a remote trigger deployment made during the current operation.
type deployment struct {
	id      string
	account integration.Account
}

// WebhookURL is where the registry delivers events for the trigger.
func (s *Service) WebhookURL(triggerUUID string) string {
	return fmt.Sprintf("%s/webhook/integration/%s", s.webhookBaseURL, triggerUUID)
}

// Create validates, deploys and persists a new trigger. If persisting fails
// after a remote deployment, the deployment is destroyed again.
func (s *Service) Create(ctx context.Context, in CreateInput) (*DocumentTrigger, error) {
	commit, err := s.openCommit(ctx, in.WorkspaceID, in.CommitUUID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.builder.Build(in.TriggerType, in.Configuration)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListDocumentTriggers(ctx, in.WorkspaceID, in.CommitUUID, in.DocumentUUID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := checkUnique(cfg, existing, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &DocumentTrigger{
		UUID:          s.newID(),
		WorkspaceID:   in.WorkspaceID,
		ProjectID:     commit.ProjectID,
		CommitUUID:    in.CommitUUID,
		DocumentUUID:  in.DocumentUUID,
		TriggerType:   in.TriggerType,
		Configuration: cfg,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var deployed *deployment
	if ic, ok := cfg.(*IntegrationConfig); ok {
		integ, err := s.checkDeployable(ctx, in.WorkspaceID, ic)
		if err != nil {
			return nil, err
		}
		deployed, err = s.deploy(ctx, integ, t.UUID, ic)
		if err != nil {
			return nil, err
		}
		ic.TriggerID = deployed.id
	}

	if err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.InsertTrigger(ctx, t)
	}); err != nil {
		s.compensate(deployed)
		return nil, fmt.Errorf("Create: %w", err)
	}

	s.logger.Info("document trigger created",
		zap.String("workspace_id", t.WorkspaceID),
		zap.String("trigger_uuid", t.UUID),
		zap.String("trigger_type", string(t.TriggerType)),
	)
	return t, nil
}

// Update replaces a trigger's configuration. An integration trigger whose
// integration or component changed is destroyed remotely and deployed again
// before anything is written; a failure in either step aborts the update.
// The new configuration is validated before the old deployment is touched.
func (s *Service) Update(ctx context.Context, in UpdateInput) (*DocumentTrigger, error) {
	current, err := s.findInOpenCommit(ctx, in.WorkspaceID, in.CommitUUID, in.TriggerUUID)
	if err != nil {
		return nil, err
	}
	if in.TriggerType != "" && in.TriggerType != current.TriggerType {
		return nil, errs.BadRequest("cannot change trigger type from %s to %s", current.TriggerType, in.TriggerType)
	}

	cfg, err := s.builder.Build(current.TriggerType, in.Configuration)
	if err != nil {
		return nil, err
	}

	var deployed *deployment
	if next, ok := cfg.(*IntegrationConfig); ok {
		prev, _ := current.Configuration.(*IntegrationConfig)
		deployed, err = s.prepareUpdate(ctx, current, prev, next)
		if err != nil {
			return nil, err
		}
	}

	updated := *current
	updated.Configuration = cfg
	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.UpdateTrigger(ctx, &updated)
	}); err != nil {
		s.compensate(deployed)
		return nil, fmt.Errorf("Update: %w", err)
	}
	return &updated, nil
}

func (s *Service) prepareUpdate(ctx context.Context, current *DocumentTrigger, prev, next *IntegrationConfig) (*deployment, error) {
	integ, err := s.checkDeployable(ctx, current.WorkspaceID, next)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.IntegrationID == next.IntegrationID && prev.ComponentID == next.ComponentID {
		next.TriggerID = prev.TriggerID
		return nil, nil
	}

	siblings, err := s.repo.ListDocumentTriggers(ctx, current.WorkspaceID, current.CommitUUID, current.DocumentUUID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	if err := checkUnique(next, siblings, current.UUID); err != nil {
		return nil, err
	}

	if prev != nil && prev.TriggerID != "" {
		if err := s.destroy(ctx, current.WorkspaceID, prev); err != nil {
			return nil, err
		}
	}
	d, err := s.deploy(ctx, integ, current.UUID, next)
	if err != nil {
		return nil, err
	}
	next.TriggerID = d.id
	return d, nil
}

// Delete tears down the remote deployment, if any, then deletes the trigger.
func (s *Service) Delete(ctx context.Context, in DeleteInput) (*DocumentTrigger, error) {
	current, err := s.findInOpenCommit(ctx, in.WorkspaceID, in.CommitUUID, in.TriggerUUID)
	if err != nil {
		return nil, err
	}
	if ic, ok := current.Configuration.(*IntegrationConfig); ok && ic.TriggerID != "" {
		if err := s.destroy(ctx, in.WorkspaceID, ic); err != nil {
			return nil, err
		}
	}
	if err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.DeleteTrigger(ctx, in.WorkspaceID, in.TriggerUUID)
	}); err != nil {
		return nil, fmt.Errorf("Delete: %w", err)
	}
	return current, nil
}

func (s *Service) openCommit(ctx context.Context, workspaceID, commitUUID string) (*Commit, error) {
	commit, err := s.repo.FindCommit(ctx, workspaceID, commitUUID)
	if err != nil {
		return nil, err
	}
	if commit.Merged() {
		return nil, errs.BadRequest("cannot modify triggers of merged commit %s", commitUUID)
	}
	return commit, nil
}

// findInOpenCommit loads a trigger that belongs to commitUUID, which must not
// be merged. A trigger of another commit is reported as not found.
func (s *Service) findInOpenCommit(ctx context.Context, workspaceID, commitUUID, triggerUUID string) (*DocumentTrigger, error) {
	if _, err := s.openCommit(ctx, workspaceID, commitUUID); err != nil {
		return nil, err
	}
	t, err := s.repo.FindTrigger(ctx, workspaceID, triggerUUID)
	if err != nil {
		return nil, err
	}
	if t.CommitUUID != commitUUID {
		return nil, errs.NotFound("trigger %s not found in commit %s", triggerUUID, commitUUID)
	}
	return t, nil
}

// usableIntegration loads a configured Pipedream integration.
func (s *Service) usableIntegration(ctx context.Context, workspaceID, id string) (*integration.Integration, error) {
	integ, err := s.integrations.FindIntegrationByID(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if integ.Type != integration.TypePipedream {
		return nil, errs.BadRequest("integration %q of type %s cannot provide triggers", integ.Name, integ.Type)
	}
	if !integ.IsConfigured() {
		return nil, errs.NotFound("integration %q is not configured", integ.Name)
	}
	return integ, nil
}

// checkDeployable loads the trigger's integration and validates its properties.
func (s *Service) checkDeployable(ctx context.Context, workspaceID string, ic *IntegrationConfig) (*integration.Integration, error) {
	integ, err := s.usableIntegration(ctx, workspaceID, ic.IntegrationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.validator.Validate(ctx, ic.ComponentID, integ, ic.Properties); err != nil {
		return nil, err
	}
	return integ, nil
}

func (s *Service) deploy(ctx context.Context, integ *integration.Integration, triggerUUID string, ic *IntegrationConfig) (*deployment, error) {
	account, _ := integ.Account()

	id, err := s.deployer.DeployTrigger(ctx, remote.DeployRequest{
		ComponentID:     ic.ComponentID,
		Account:         account,
		ConfiguredProps: ic.Properties,
		WebhookURL:      s.WebhookURL(triggerUUID),
	})
	if err != nil {
		return nil, errs.Upstream(err)
	}
	s.logger.Info("deployed integration trigger",
		zap.String("trigger_uuid", triggerUUID),
		zap.String("component_id", ic.ComponentID),
		zap.String("remote_trigger_id", id),
	)
	return &deployment{id: id, account: account}, nil
}

func (s *Service) destroy(ctx context.Context, workspaceID string, ic *IntegrationConfig) error {
	integ, err := s.integrations.FindIntegrationByID(ctx, workspaceID, ic.IntegrationID)
	if err != nil {
		return err
	}
	account, ok := integ.Account()
	if !ok {
		return errs.NotFound("integration %q is not configured", integ.Name)
	}
	if err := s.deployer.DestroyTrigger(ctx, ic.TriggerID, account); err != nil {
		return errs.Upstream(err)
	}
	return nil
}

// compensate destroys a deployment whose trigger row could not be written.
func (s *Service) compensate(d *deployment) {
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.deployer.DestroyTrigger(ctx, d.id, d.account); err != nil {
		s.logger.Error("failed to destroy orphaned trigger deployment",
			zap.String("remote_trigger_id", d.id),
			zap.Error(err),
		)
	}
}

// checkUnique enforces one email and one scheduled trigger per document and
// one integration trigger per document and integration. skipUUID is ignored.
func checkUnique(cfg Configuration, existing []*DocumentTrigger, skipUUID string) error {
	for _, e := range existing {
		if e.UUID == skipUUID || e.TriggerType != cfg.TriggerType() {
			continue
		}
		switch c := cfg.(type) {
		case *EmailConfig, *ScheduledConfig:
			return errs.BadRequest("document already has a %s trigger", c.TriggerType())
		case *IntegrationConfig:
			if other, ok := e.Configuration.(*IntegrationConfig); ok && other.IntegrationID == c.IntegrationID {
				return errs.BadRequest("document already has a trigger for integration %s", c.IntegrationID)
			}
		}
	}
	return nil
}
