// Package stack implements the stack lifecycle engine: create, start,
// stop, redeploy, and remove operations that reconcile a Stack's desired
// Compose state against the live container set.
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sasta-kro/labuh-go/compose"
	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/registry"
	"github.com/sasta-kro/labuh-go/runtime"
	"github.com/sasta-kro/labuh-go/util"
)

// Store is the persistence surface the stack engine needs. Satisfied by
// *store.Store; narrowed here so this package does not import store
// directly and can be tested against a fake.
type Store interface {
	CreateStack(stack *models.Stack) error
	GetStack(id string) (*models.Stack, error)
	GetStackByWebhookToken(token string) (*models.Stack, error)
	ListAllStacks() ([]*models.Stack, error)
	UpdateStackStatus(id string, status models.StackStatus) error
	UpdateStackCompose(id, composeContent string) error
	UpdateStackWebhookToken(id, token string) error
	DeleteStack(id string) error
	ListEnvVarsByStack(stackID string) ([]*models.StackEnvVar, error)
	DeleteEnvVarsByStack(stackID string) error
	CreateDeploymentLog(log *models.DeploymentLog) error
	FinishDeploymentLog(id string, status models.DeploymentStatus, logs string) error
	GetRegistryCredential(teamID, registryHost string) (*models.RegistryCredential, error)
}

// Engine is the stack lifecycle engine.
type Engine struct {
	store   Store
	runtime runtime.Port
	network string
	logger  *slog.Logger
}

// NewEngine builds a stack lifecycle engine.
func NewEngine(store Store, rt runtime.Port, network string, logger *slog.Logger) *Engine {
	return &Engine{store: store, runtime: rt, network: network, logger: logger}
}

// CreateStack parses the manifest, persists the Stack row at status
// "creating", then pulls and creates one container per service in
// dependency order. It does not start anything. A parse error or a
// volume-security rejection aborts before any row is written.
//
// If a later service fails mid-loop, the stack is intentionally left at
// status "creating" with whatever containers were already made — see
// DESIGN.md's resolution of the partial-failure open question.
func (e *Engine) CreateStack(ctx context.Context, userID, teamID, name, composeContent string) (*models.Stack, error) {
	parsed, err := compose.Parse(composeContent)
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateWebhookToken()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "generate webhook token", err)
	}

	newStack := &models.Stack{
		ID:             newID(),
		Name:           name,
		UserID:         userID,
		TeamID:         teamID,
		ComposeContent: composeContent,
		Status:         models.StackCreating,
		WebhookToken:   token,
	}
	if err := e.store.CreateStack(newStack); err != nil {
		return nil, fmt.Errorf("persist stack %q: %w", name, err)
	}

	for _, svc := range parsed.Services {
		if err := e.createService(ctx, newStack, svc); err != nil {
			return newStack, err
		}
	}

	if err := e.store.UpdateStackStatus(newStack.ID, models.StackStopped); err != nil {
		return newStack, fmt.Errorf("mark stack %q stopped: %w", newStack.ID, err)
	}
	newStack.Status = models.StackStopped
	return newStack, nil
}

func (e *Engine) createService(ctx context.Context, s *models.Stack, svc compose.ParsedService) error {
	svc, err := e.applyEnvMerge(s.ID, svc)
	if err != nil {
		return err
	}

	auth, err := registry.Lookup(e.store, s.TeamID, svc.Image)
	if err != nil {
		e.logger.Warn("registry credential lookup failed, pulling anonymously",
			"stack_id", s.ID, "service", svc.Name, "error", err)
		auth = nil
	}
	if err := e.runtime.PullImage(ctx, svc.Image, auth); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("pull image for service %q", svc.Name), err)
	}

	cfg := compose.ToContainerConfig(svc, s.ID, s.Name)
	if cfg.NetworkMode == "" {
		cfg.NetworkMode = e.network
	}
	if _, err := e.runtime.CreateContainer(ctx, cfg); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("create container for service %q", svc.Name), err)
	}
	return nil
}

// applyEnvMerge implements the env-merge rule: manifest entries are the
// base, global StackEnvVars overlay them, then per-service StackEnvVars
// overlay those; a merged (k=v) replaces any existing "k=" prefix entry
// in place, otherwise it's appended.
func (e *Engine) applyEnvMerge(stackID string, svc compose.ParsedService) (compose.ParsedService, error) {
	vars, err := e.store.ListEnvVarsByStack(stackID)
	if err != nil {
		return svc, fmt.Errorf("list env vars for stack %q: %w", stackID, err)
	}

	effective := make(map[string]string)
	for _, v := range vars {
		if v.ContainerName == "" {
			effective[v.Key] = v.Value
		}
	}
	for _, v := range vars {
		if v.ContainerName == svc.Name {
			effective[v.Key] = v.Value
		}
	}

	env := append([]string(nil), svc.Env...)
	for k, v := range effective {
		prefix := k + "="
		replaced := false
		for i, entry := range env {
			if strings.HasPrefix(entry, prefix) {
				env[i] = fmt.Sprintf("%s=%s", k, v)
				replaced = true
				break
			}
		}
		if !replaced {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	if len(env) == 0 {
		env = nil
	}
	svc.Env = env
	return svc, nil
}

// StartStack starts every container not already running.
func (e *Engine) StartStack(ctx context.Context, stackID, userID string) error {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return err
	}

	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.State == "running" {
			continue
		}
		if err := e.runtime.StartContainer(ctx, c.ID); err != nil {
			return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("start container %q", c.ID), err)
		}
	}

	return e.store.UpdateStackStatus(stackID, models.StackRunning)
}

// StopStack stops every running container.
func (e *Engine) StopStack(ctx context.Context, stackID, userID string) error {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return err
	}

	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.State != "running" {
			continue
		}
		if err := e.runtime.StopContainer(ctx, c.ID); err != nil {
			return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("stop container %q", c.ID), err)
		}
	}

	return e.store.UpdateStackStatus(stackID, models.StackStopped)
}

// RedeployStack re-parses the stored manifest and, for every service,
// pulls fresh, stops+force-removes the existing container, and recreates
// it, then starts everything. Stop/remove failures on an already-gone
// container are logged and tolerated; pull failures abort.
func (e *Engine) RedeployStack(ctx context.Context, stackID, userID string, trigger models.DeploymentTrigger) error {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return err
	}

	log := &models.DeploymentLog{ID: newID(), StackID: stackID, TriggerType: trigger, Status: models.DeploymentPending}
	if err := e.store.CreateDeploymentLog(log); err != nil {
		return fmt.Errorf("create deployment log: %w", err)
	}

	if err := e.store.UpdateStackStatus(stackID, models.StackDeploying); err != nil {
		return fmt.Errorf("mark stack %q deploying: %w", stackID, err)
	}

	parsed, err := compose.Parse(s.ComposeContent)
	if err != nil {
		e.store.UpdateStackStatus(stackID, models.StackError)
		e.store.FinishDeploymentLog(log.ID, models.DeploymentFailed, err.Error())
		return err
	}

	for _, svc := range parsed.Services {
		if err := e.redeployOneService(ctx, s, svc); err != nil {
			e.store.UpdateStackStatus(stackID, models.StackError)
			e.store.FinishDeploymentLog(log.ID, models.DeploymentFailed, err.Error())
			return err
		}
	}

	if err := e.StartStack(ctx, stackID, userID); err != nil {
		e.store.UpdateStackStatus(stackID, models.StackError)
		e.store.FinishDeploymentLog(log.ID, models.DeploymentFailed, err.Error())
		return err
	}

	e.store.FinishDeploymentLog(log.ID, models.DeploymentSuccess, "")
	return nil
}

// RedeployService redeploys a single service, matched case-insensitively
// against its bare name or the "{stack}-{service}" form.
func (e *Engine) RedeployService(ctx context.Context, stackID, userID, serviceName string) error {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return err
	}

	parsed, err := compose.Parse(s.ComposeContent)
	if err != nil {
		return err
	}

	target := strings.ToLower(serviceName)
	for _, svc := range parsed.Services {
		full := strings.ToLower(compose.ContainerName(s.Name, svc.Name))
		if strings.ToLower(svc.Name) == target || full == target {
			return e.redeployOneService(ctx, s, svc)
		}
	}
	return errs.New(errs.NotFound, fmt.Sprintf("service %q not found in stack %q", serviceName, stackID))
}

func (e *Engine) redeployOneService(ctx context.Context, s *models.Stack, svc compose.ParsedService) error {
	svc, err := e.applyEnvMerge(s.ID, svc)
	if err != nil {
		return err
	}

	auth, err := registry.Lookup(e.store, s.TeamID, svc.Image)
	if err != nil {
		e.logger.Warn("registry credential lookup failed, pulling anonymously",
			"stack_id", s.ID, "service", svc.Name, "error", err)
		auth = nil
	}
	if err := e.runtime.PullImage(ctx, svc.Image, auth); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("pull image for service %q", svc.Name), err)
	}

	containerName := compose.ContainerName(s.Name, svc.Name)
	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if !hasExactName(c, containerName) {
			continue
		}
		if err := e.runtime.StopContainer(ctx, c.ID); err != nil {
			e.logger.Warn("stop before redeploy failed, continuing", "container_id", c.ID, "error", err)
		}
		if err := e.runtime.RemoveContainer(ctx, c.ID, true); err != nil {
			e.logger.Warn("remove before redeploy failed, continuing", "container_id", c.ID, "error", err)
		}
	}

	cfg := compose.ToContainerConfig(svc, s.ID, s.Name)
	if cfg.NetworkMode == "" {
		cfg.NetworkMode = e.network
	}
	id, err := e.runtime.CreateContainer(ctx, cfg)
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("create container for service %q", svc.Name), err)
	}
	return e.runtime.StartContainer(ctx, id)
}

// RemoveStack stops and force-removes every container belonging to the
// stack (individual failures logged and tolerated), then deletes the row
// and its env var overrides. Domains and deployment logs are expected to
// cascade at the caller layer that owns them (provisioner, audit log).
func (e *Engine) RemoveStack(ctx context.Context, stackID, userID string) error {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return err
	}

	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if err := e.runtime.StopContainer(ctx, c.ID); err != nil {
			e.logger.Warn("stop during remove failed, continuing", "container_id", c.ID, "error", err)
		}
		if err := e.runtime.RemoveContainer(ctx, c.ID, true); err != nil {
			e.logger.Warn("remove during remove failed, continuing", "container_id", c.ID, "error", err)
		}
	}

	if err := e.store.DeleteEnvVarsByStack(stackID); err != nil {
		return fmt.Errorf("delete env vars for stack %q: %w", stackID, err)
	}
	return e.store.DeleteStack(stackID)
}

// GetStackHealth classifies the stack's live container set.
func (e *Engine) GetStackHealth(ctx context.Context, stackID, userID string) (*models.StackHealth, error) {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return nil, err
	}

	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return nil, err
	}

	health := &models.StackHealth{Total: len(containers)}
	for _, c := range containers {
		entry := models.ContainerHealth{ID: c.ID, Name: firstName(c), State: c.State, Status: c.Status}
		health.Containers = append(health.Containers, entry)
		switch c.State {
		case "running":
			health.Running++
		case "exited", "created":
			health.Stopped++
		default:
			health.Unhealthy++
		}
	}

	switch {
	case health.Total == 0:
		health.Status = "empty"
	case health.Running == health.Total:
		health.Status = "healthy"
	case health.Running > 0:
		health.Status = "partial"
	default:
		health.Status = "stopped"
	}
	return health, nil
}

// GetStackLogs tails the last `tail` lines from every container in the stack.
func (e *Engine) GetStackLogs(ctx context.Context, stackID, userID string, tail int) ([]models.StackLogEntry, error) {
	s, err := e.getOwnedStack(stackID, userID)
	if err != nil {
		return nil, err
	}

	containers, err := e.discoverContainers(ctx, s)
	if err != nil {
		return nil, err
	}

	var entries []models.StackLogEntry
	for _, c := range containers {
		lines, err := e.runtime.GetLogs(ctx, c.ID, tail)
		if err != nil {
			e.logger.Warn("get logs failed, continuing", "container_id", c.ID, "error", err)
			continue
		}
		for _, line := range lines {
			entries = append(entries, models.StackLogEntry{Container: firstName(c), Message: line})
		}
	}
	return entries, nil
}

// UpdateStackCompose replaces the stored manifest without redeploying.
// The caller is expected to trigger a redeploy separately to apply it.
func (e *Engine) UpdateStackCompose(ctx context.Context, stackID, userID, composeContent string) error {
	if _, err := e.getOwnedStack(stackID, userID); err != nil {
		return err
	}
	if _, err := compose.Parse(composeContent); err != nil {
		return err
	}
	return e.store.UpdateStackCompose(stackID, composeContent)
}

// RegenerateWebhookToken rotates a stack's webhook token and returns the new value.
func (e *Engine) RegenerateWebhookToken(ctx context.Context, stackID, userID string) (string, error) {
	if _, err := e.getOwnedStack(stackID, userID); err != nil {
		return "", err
	}
	token, err := util.GenerateWebhookToken()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "generate webhook token", err)
	}
	if err := e.store.UpdateStackWebhookToken(stackID, token); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateWebhookToken looks up a stack by id with no ownership
// constraint (the caller is unauthenticated) and compares the supplied
// token using a constant-time comparison — see DESIGN.md's resolution of
// the webhook-comparison open question.
func (e *Engine) ValidateWebhookToken(stackID, token string) (*models.Stack, error) {
	s, err := e.store.GetStack(stackID)
	if err != nil {
		return nil, err
	}
	if !util.SecureCompare(s.WebhookToken, token) {
		return nil, errs.New(errs.InvalidCredentials, "invalid webhook token")
	}
	return s, nil
}

// getOwnedStack fetches a stack constrained to the requesting user. Rows
// belonging to other users are indistinguishable from non-existence.
func (e *Engine) getOwnedStack(stackID, userID string) (*models.Stack, error) {
	s, err := e.store.GetStack(stackID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("stack %q not found", stackID))
	}
	return s, nil
}

// discoverContainers finds every container belonging to a stack by its
// labuh.stack.id label, falling back to the "/{stack_name}-" name-prefix
// rule only when the label is absent (containers created before this
// control plane's label convention). Label-first avoids the documented
// prefix-collision hazard between e.g. "app" and "app-v2" — see
// DESIGN.md's resolution of the container-discovery open question.
func (e *Engine) discoverContainers(ctx context.Context, s *models.Stack) ([]runtime.ContainerInfo, error) {
	all, err := e.runtime.ListContainers(ctx, true)
	if err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, "list containers", err)
	}

	prefix := "/" + s.Name + "-"
	var matched []runtime.ContainerInfo
	for _, c := range all {
		if c.Labels["labuh.stack.id"] == s.ID {
			matched = append(matched, c)
			continue
		}
		if c.Labels["labuh.stack.id"] == "" && hasNamePrefix(c, prefix) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func hasNamePrefix(c runtime.ContainerInfo, prefix string) bool {
	for _, name := range c.Names {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func hasExactName(c runtime.ContainerInfo, name string) bool {
	target := "/" + name
	for _, n := range c.Names {
		if n == target {
			return true
		}
	}
	return false
}

func firstName(c runtime.ContainerInfo) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

func newID() string {
	return uuid.NewString()
}
