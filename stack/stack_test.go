package stack

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/runtime"
)

const validCompose = `
services:
  web:
    image: nginx:alpine
    ports:
      - "8080:80"
`

type fakeStore struct {
	stacks      map[string]*models.Stack
	envVars     map[string][]*models.StackEnvVar
	deployLogs  map[string]*models.DeploymentLog
	webhookByID map[string]string // token -> stackID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stacks:      make(map[string]*models.Stack),
		envVars:     make(map[string][]*models.StackEnvVar),
		deployLogs:  make(map[string]*models.DeploymentLog),
		webhookByID: make(map[string]string),
	}
}

func (f *fakeStore) CreateStack(s *models.Stack) error {
	f.stacks[s.ID] = s
	f.webhookByID[s.WebhookToken] = s.ID
	return nil
}

func (f *fakeStore) GetStack(id string) (*models.Stack, error) {
	s, ok := f.stacks[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "stack not found")
	}
	return s, nil
}

func (f *fakeStore) GetStackByWebhookToken(token string) (*models.Stack, error) {
	id, ok := f.webhookByID[token]
	if !ok {
		return nil, errs.New(errs.NotFound, "stack not found")
	}
	return f.GetStack(id)
}

func (f *fakeStore) ListAllStacks() ([]*models.Stack, error) {
	var out []*models.Stack
	for _, s := range f.stacks {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) UpdateStackStatus(id string, status models.StackStatus) error {
	s, ok := f.stacks[id]
	if !ok {
		return errs.New(errs.NotFound, "stack not found")
	}
	s.Status = status
	return nil
}

func (f *fakeStore) UpdateStackCompose(id, composeContent string) error {
	s, ok := f.stacks[id]
	if !ok {
		return errs.New(errs.NotFound, "stack not found")
	}
	s.ComposeContent = composeContent
	return nil
}

func (f *fakeStore) UpdateStackWebhookToken(id, token string) error {
	s, ok := f.stacks[id]
	if !ok {
		return errs.New(errs.NotFound, "stack not found")
	}
	delete(f.webhookByID, s.WebhookToken)
	s.WebhookToken = token
	f.webhookByID[token] = id
	return nil
}

func (f *fakeStore) DeleteStack(id string) error {
	delete(f.stacks, id)
	return nil
}

func (f *fakeStore) ListEnvVarsByStack(stackID string) ([]*models.StackEnvVar, error) {
	return f.envVars[stackID], nil
}

func (f *fakeStore) DeleteEnvVarsByStack(stackID string) error {
	delete(f.envVars, stackID)
	return nil
}

func (f *fakeStore) CreateDeploymentLog(log *models.DeploymentLog) error {
	f.deployLogs[log.ID] = log
	return nil
}

func (f *fakeStore) FinishDeploymentLog(id string, status models.DeploymentStatus, logs string) error {
	if log, ok := f.deployLogs[id]; ok {
		log.Status = status
	}
	return nil
}

func (f *fakeStore) GetRegistryCredential(teamID, registryHost string) (*models.RegistryCredential, error) {
	return nil, errs.New(errs.NotFound, "no credential")
}

type fakeRuntime struct {
	containers map[string]*runtime.ContainerInfo
	nextID     int
	failPull   bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*runtime.ContainerInfo)}
}

func (f *fakeRuntime) PullImage(ctx context.Context, image string, auth *runtime.RegistryAuth) error {
	if f.failPull {
		return errs.New(errs.RuntimeErrorKind, "pull failed")
	}
	return nil
}

func (f *fakeRuntime) CreateContainer(ctx context.Context, cfg runtime.ContainerConfig) (string, error) {
	f.nextID++
	id := string(rune('a' + f.nextID))
	f.containers[id] = &runtime.ContainerInfo{
		ID:     id,
		Names:  []string{"/" + cfg.Name},
		Image:  cfg.Image,
		State:  "created",
		Labels: cfg.Labels,
	}
	return id, nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error {
	if c, ok := f.containers[id]; ok {
		c.State = "running"
	}
	return nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, id string) error {
	if c, ok := f.containers[id]; ok {
		c.State = "exited"
	}
	return nil
}

func (f *fakeRuntime) RestartContainer(ctx context.Context, id string) error { return nil }

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	delete(f.containers, id)
	return nil
}

func (f *fakeRuntime) ListContainers(ctx context.Context, all bool) ([]runtime.ContainerInfo, error) {
	var out []runtime.ContainerInfo
	for _, c := range f.containers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRuntime) InspectContainer(ctx context.Context, id string) (runtime.ContainerInfo, error) {
	if c, ok := f.containers[id]; ok {
		return *c, nil
	}
	return runtime.ContainerInfo{}, errs.New(errs.NotFound, "container not found")
}

func (f *fakeRuntime) GetLogs(ctx context.Context, id string, tail int) ([]string, error) {
	return []string{"log line"}, nil
}

func (f *fakeRuntime) GetStats(ctx context.Context, id string) (runtime.ContainerStats, error) {
	return runtime.ContainerStats{}, nil
}

func (f *fakeRuntime) ExecCommand(ctx context.Context, id string, argv []string) (runtime.ExecHandle, error) {
	return runtime.ExecHandle{}, nil
}

func (f *fakeRuntime) ConnectExec(ctx context.Context, handle runtime.ExecHandle) (io.Reader, io.WriteCloser, error) {
	return nil, nil, nil
}

func (f *fakeRuntime) EnsureNetwork(ctx context.Context, name string) error { return nil }
func (f *fakeRuntime) ConnectNetwork(ctx context.Context, containerName, network string) error {
	return nil
}
func (f *fakeRuntime) ListNetworks(ctx context.Context) ([]runtime.NetworkInfo, error) { return nil, nil }
func (f *fakeRuntime) ListNodes(ctx context.Context) ([]runtime.NodeInfo, error)        { return nil, nil }
func (f *fakeRuntime) IsSwarmEnabled(ctx context.Context) (bool, error)                 { return false, nil }
func (f *fakeRuntime) SwarmInit(ctx context.Context, listenAddr string) error           { return nil }
func (f *fakeRuntime) SwarmJoin(ctx context.Context, listenAddr, remoteAddr, token string) error {
	return nil
}
func (f *fakeRuntime) MigrateNetworkToOverlay(ctx context.Context, name string) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateStackPullsAndCreatesEachService(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}
	if s.Status != models.StackStopped {
		t.Errorf("status after create = %q, want %q", s.Status, models.StackStopped)
	}
	if len(rt.containers) != 1 {
		t.Errorf("len(containers) = %d, want 1", len(rt.containers))
	}
}

func TestCreateStackAbortsBeforePersistOnParseError(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	_, err := engine.CreateStack(context.Background(), "user-1", "team-1", "bad", "not: valid: : yaml:::")
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
	if len(store.stacks) != 0 {
		t.Errorf("expected no stack persisted on parse failure, got %d", len(store.stacks))
	}
}

func TestCreateStackLeftInCreatingOnMidLoopFailure(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	rt.failPull = true
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err == nil {
		t.Fatal("expected pull failure error, got nil")
	}
	if s == nil {
		t.Fatal("expected partial stack to be returned even on failure")
	}
	if s.Status != models.StackCreating {
		t.Errorf("status after mid-loop failure = %q, want %q", s.Status, models.StackCreating)
	}
	if _, ok := store.stacks[s.ID]; !ok {
		t.Error("expected partially-created stack row to remain persisted")
	}
}

func TestStartAndStopStackOnlyTouchMatchingState(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	if err := engine.StartStack(context.Background(), s.ID, "user-1"); err != nil {
		t.Fatalf("StartStack() error = %v", err)
	}
	if store.stacks[s.ID].Status != models.StackRunning {
		t.Errorf("status after start = %q, want running", store.stacks[s.ID].Status)
	}

	if err := engine.StopStack(context.Background(), s.ID, "user-1"); err != nil {
		t.Fatalf("StopStack() error = %v", err)
	}
	if store.stacks[s.ID].Status != models.StackStopped {
		t.Errorf("status after stop = %q, want stopped", store.stacks[s.ID].Status)
	}
}

func TestGetOwnedStackRejectsOtherUsersAsNotFound(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	_, err = engine.getOwnedStack(s.ID, "someone-else")
	if err == nil {
		t.Fatal("expected not-found error for mismatched owner")
	}
	appErr, ok := err.(*errs.AppError)
	if !ok || appErr.Kind != errs.NotFound {
		t.Errorf("expected errs.NotFound, got %v", err)
	}
}

func TestValidateWebhookTokenRejectsWrongToken(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	if _, err := engine.ValidateWebhookToken(s.ID, "wrong-token"); err == nil {
		t.Fatal("expected error for wrong token")
	}
	if _, err := engine.ValidateWebhookToken(s.ID, s.WebhookToken); err != nil {
		t.Fatalf("expected correct token to validate, got error: %v", err)
	}
}

func TestGetStackHealthReflectsContainerStates(t *testing.T) {
	store := newFakeStore()
	rt := newFakeRuntime()
	engine := NewEngine(store, rt, "labuh-network", testLogger())

	s, err := engine.CreateStack(context.Background(), "user-1", "team-1", "myapp", validCompose)
	if err != nil {
		t.Fatalf("CreateStack() error = %v", err)
	}

	health, err := engine.GetStackHealth(context.Background(), s.ID, "user-1")
	if err != nil {
		t.Fatalf("GetStackHealth() error = %v", err)
	}
	if health.Status != "stopped" {
		t.Errorf("status = %q, want stopped (all created, none running)", health.Status)
	}

	if err := engine.StartStack(context.Background(), s.ID, "user-1"); err != nil {
		t.Fatalf("StartStack() error = %v", err)
	}
	health, err = engine.GetStackHealth(context.Background(), s.ID, "user-1")
	if err != nil {
		t.Fatalf("GetStackHealth() error = %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
}
