package automation

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/runtime"
)

type fakeMetricsStore struct {
	stacks  []*models.Stack
	mu      sync.Mutex
	samples []*models.ResourceMetric
	pruned  int64
}

func (f *fakeMetricsStore) ListAllStacks() ([]*models.Stack, error) {
	return f.stacks, nil
}

func (f *fakeMetricsStore) InsertResourceMetric(m *models.ResourceMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, m)
	return nil
}

func (f *fakeMetricsStore) PruneMetricsOlderThan(cutoff time.Time) (int64, error) {
	return f.pruned, nil
}

// minimalRuntime implements runtime.Port with only ListContainers and
// GetStats doing real work; every other method is an unused stub, since
// MetricsCollector never calls them.
type minimalRuntime struct {
	containers []runtime.ContainerInfo
	stats      map[string]runtime.ContainerStats
	failStats  map[string]bool
}

func (m *minimalRuntime) ListContainers(ctx context.Context, all bool) ([]runtime.ContainerInfo, error) {
	return m.containers, nil
}

func (m *minimalRuntime) GetStats(ctx context.Context, id string) (runtime.ContainerStats, error) {
	if m.failStats[id] {
		return runtime.ContainerStats{}, context.DeadlineExceeded
	}
	return m.stats[id], nil
}

func (m *minimalRuntime) PullImage(ctx context.Context, image string, auth *runtime.RegistryAuth) error {
	return nil
}
func (m *minimalRuntime) CreateContainer(ctx context.Context, cfg runtime.ContainerConfig) (string, error) {
	return "", nil
}
func (m *minimalRuntime) StartContainer(ctx context.Context, id string) error   { return nil }
func (m *minimalRuntime) StopContainer(ctx context.Context, id string) error    { return nil }
func (m *minimalRuntime) RestartContainer(ctx context.Context, id string) error { return nil }
func (m *minimalRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	return nil
}
func (m *minimalRuntime) InspectContainer(ctx context.Context, id string) (runtime.ContainerInfo, error) {
	return runtime.ContainerInfo{}, nil
}
func (m *minimalRuntime) GetLogs(ctx context.Context, id string, tail int) ([]string, error) {
	return nil, nil
}
func (m *minimalRuntime) ExecCommand(ctx context.Context, id string, argv []string) (runtime.ExecHandle, error) {
	return runtime.ExecHandle{}, nil
}
func (m *minimalRuntime) ConnectExec(ctx context.Context, handle runtime.ExecHandle) (io.Reader, io.WriteCloser, error) {
	return nil, nil, nil
}
func (m *minimalRuntime) EnsureNetwork(ctx context.Context, name string) error { return nil }
func (m *minimalRuntime) ConnectNetwork(ctx context.Context, containerName, network string) error {
	return nil
}
func (m *minimalRuntime) ListNetworks(ctx context.Context) ([]runtime.NetworkInfo, error) {
	return nil, nil
}
func (m *minimalRuntime) ListNodes(ctx context.Context) ([]runtime.NodeInfo, error) { return nil, nil }
func (m *minimalRuntime) IsSwarmEnabled(ctx context.Context) (bool, error)          { return false, nil }
func (m *minimalRuntime) SwarmInit(ctx context.Context, listenAddr string) error    { return nil }
func (m *minimalRuntime) SwarmJoin(ctx context.Context, listenAddr, remoteAddr, token string) error {
	return nil
}
func (m *minimalRuntime) MigrateNetworkToOverlay(ctx context.Context, name string) error { return nil }

func TestMetricsCollectorSamplesLabeledContainersOnly(t *testing.T) {
	store := &fakeMetricsStore{stacks: []*models.Stack{{ID: "stack-1"}}}
	rt := &minimalRuntime{
		containers: []runtime.ContainerInfo{
			{ID: "c1", Labels: map[string]string{"labuh.stack.id": "stack-1"}},
			{ID: "c2", Labels: map[string]string{"labuh.stack.id": "unknown-stack"}},
			{ID: "c3", Labels: map[string]string{}},
		},
		stats: map[string]runtime.ContainerStats{
			"c1": {CPUPercent: 12.5, MemoryUsage: 1024},
		},
	}
	collector := NewMetricsCollector(store, rt, testSchedulerLogger())

	collector.tick(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1 (only the labeled, known-stack container)", len(store.samples))
	}
	if store.samples[0].ContainerID != "c1" || store.samples[0].StackID != "stack-1" {
		t.Errorf("sample = %+v, unexpected", store.samples[0])
	}
}

func TestMetricsCollectorContinuesPastStatsFailure(t *testing.T) {
	store := &fakeMetricsStore{stacks: []*models.Stack{{ID: "stack-1"}}}
	rt := &minimalRuntime{
		containers: []runtime.ContainerInfo{
			{ID: "c1", Labels: map[string]string{"labuh.stack.id": "stack-1"}},
			{ID: "c2", Labels: map[string]string{"labuh.stack.id": "stack-1"}},
		},
		stats:     map[string]runtime.ContainerStats{"c2": {CPUPercent: 5}},
		failStats: map[string]bool{"c1": true},
	}
	collector := NewMetricsCollector(store, rt, testSchedulerLogger())

	collector.tick(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1 (c1's stats failure should not block c2)", len(store.samples))
	}
	if store.samples[0].ContainerID != "c2" {
		t.Errorf("sample.ContainerID = %q, want c2", store.samples[0].ContainerID)
	}
}
