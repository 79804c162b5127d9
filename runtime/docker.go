package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/api/types/swarm"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sasta-kro/labuh-go/errs"
)

// Docker is the sole RuntimePort implementation: a thin wrapper around
// the Docker SDK client. All Docker SDK calls are isolated here so no
// other package imports it directly.
type Docker struct {
	sdk    *dockerclient.Client
	logger *slog.Logger
}

// NewDocker connects to the daemon (via $DOCKER_HOST or the default
// socket) and pings it with a 5s timeout before returning, so the
// control plane fails fast at startup if Docker is unreachable.
func NewDocker(logger *slog.Logger) (*Docker, error) {
	sdkClient, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create docker sdk client: %w", err)
	}

	docker := &Docker{sdk: sdkClient, logger: logger}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := sdkClient.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	logger.Info("docker runtime connected", "host", sdkClient.DaemonHost())
	return docker, nil
}

// Close releases the underlying SDK client connection.
func (d *Docker) Close() error { return d.sdk.Close() }

func (d *Docker) PullImage(ctx context.Context, imageRef string, auth *RegistryAuth) error {
	opts := image.PullOptions{}
	if auth != nil {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username: auth.Username,
			Password: auth.Password,
		})
		if err != nil {
			return errs.Wrap(errs.RuntimeErrorKind, "encode registry auth", err)
		}
		opts.RegistryAuth = encoded
	}

	reader, err := d.sdk.ImagePull(ctx, imageRef, opts)
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("pull image %q", imageRef), err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("drain pull stream for %q", imageRef), err)
	}
	return nil
}

func (d *Docker) CreateContainer(ctx context.Context, cfg ContainerConfig) (string, error) {
	exposedPorts, portBindings, err := translatePorts(cfg.Ports)
	if err != nil {
		return "", errs.Wrap(errs.Validation, "translate ports", err)
	}

	mounts, err := translateVolumes(cfg.Volumes)
	if err != nil {
		return "", errs.Wrap(errs.Validation, "translate volumes", err)
	}

	containerConfig := &container.Config{
		Image:        cfg.Image,
		Env:          cfg.Env,
		Labels:       cfg.Labels,
		Cmd:          cfg.Cmd,
		ExposedPorts: exposedPorts,
	}

	hostConfig := &container.HostConfig{
		Mounts:       mounts,
		PortBindings: portBindings,
		ExtraHosts:   cfg.ExtraHosts,
	}

	if cfg.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(cfg.RestartPolicy),
		}
	}

	if cfg.NetworkMode != "" {
		hostConfig.NetworkMode = container.NetworkMode(cfg.NetworkMode)
	}

	var resources container.Resources
	hasResources := false
	if cfg.CPULimit != nil {
		resources.NanoCPUs = int64(*cfg.CPULimit * 1e9)
		hasResources = true
	}
	if cfg.MemoryLimit != nil {
		resources.Memory = *cfg.MemoryLimit
		hasResources = true
	}
	if hasResources {
		hostConfig.Resources = resources
	}

	var platform *specs.Platform
	if cfg.Platform != nil {
		platform = cfg.Platform
	}

	resp, err := d.sdk.ContainerCreate(ctx, containerConfig, hostConfig, nil, platform, cfg.Name)
	if err != nil {
		return "", errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("create container %q", cfg.Name), err)
	}
	return resp.ID, nil
}

func (d *Docker) StartContainer(ctx context.Context, id string) error {
	if err := d.sdk.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("start container %q", id), err)
	}
	return nil
}

func (d *Docker) StopContainer(ctx context.Context, id string) error {
	timeout := 10
	if err := d.sdk.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("stop container %q", id), err)
	}
	return nil
}

func (d *Docker) RestartContainer(ctx context.Context, id string) error {
	timeout := 10
	if err := d.sdk.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("restart container %q", id), err)
	}
	return nil
}

func (d *Docker) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := d.sdk.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("remove container %q", id), err)
	}
	return nil
}

func (d *Docker) ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error) {
	summaries, err := d.sdk.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, "list containers", err)
	}
	infos := make([]ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		infos = append(infos, ContainerInfo{
			ID:     s.ID,
			Names:  s.Names,
			Image:  s.Image,
			State:  s.State,
			Status: s.Status,
			Labels: s.Labels,
		})
	}
	return infos, nil
}

func (d *Docker) InspectContainer(ctx context.Context, id string) (ContainerInfo, error) {
	inspected, err := d.sdk.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerInfo{}, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("inspect container %q", id), err)
	}
	info := ContainerInfo{
		ID:     inspected.ID,
		Names:  []string{inspected.Name},
		Labels: inspected.Config.Labels,
	}
	if inspected.Config != nil {
		info.Image = inspected.Config.Image
	}
	if inspected.State != nil {
		info.State = inspected.State.Status
		info.Status = inspected.State.Status
	}
	return info, nil
}

func (d *Docker) GetLogs(ctx context.Context, id string, tail int) ([]string, error) {
	reader, err := d.sdk.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("get logs %q", id), err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("demux logs %q", id), err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

func (d *Docker) GetStats(ctx context.Context, id string) (ContainerStats, error) {
	resp, err := d.sdk.ContainerStats(ctx, id, false)
	if err != nil {
		return ContainerStats{}, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("get stats %q", id), err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ContainerStats{}, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("decode stats %q", id), err)
	}

	return ContainerStats{
		CPUPercent:  cpuPercent(raw),
		MemoryUsage: int64(raw.MemoryStats.Usage),
	}, nil
}

// cpuPercent implements Docker's standard CPU-percent formula: the
// container's CPU delta over the system's CPU delta, scaled by the
// number of online CPUs.
func cpuPercent(stats container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	onlineCPUs := float64(stats.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	return (cpuDelta / systemDelta) * onlineCPUs * 100.0
}

func (d *Docker) ExecCommand(ctx context.Context, id string, argv []string) (ExecHandle, error) {
	resp, err := d.sdk.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  true,
	})
	if err != nil {
		return ExecHandle{}, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("exec create %q", id), err)
	}
	return ExecHandle{ID: resp.ID}, nil
}

func (d *Docker) ConnectExec(ctx context.Context, handle ExecHandle) (io.Reader, io.WriteCloser, error) {
	attach, err := d.sdk.ContainerExecAttach(ctx, handle.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, nil, errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("exec attach %q", handle.ID), err)
	}
	return attach.Reader, attach.Conn, nil
}

func (d *Docker) EnsureNetwork(ctx context.Context, name string) error {
	existing, err := d.sdk.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("list networks for %q", name), err)
	}
	for _, n := range existing {
		if n.Name == name {
			return nil
		}
	}

	_, err = d.sdk.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("create network %q", name), err)
	}
	return nil
}

func (d *Docker) ConnectNetwork(ctx context.Context, containerName, networkName string) error {
	if err := d.sdk.NetworkConnect(ctx, networkName, containerName, nil); err != nil {
		return errs.Wrap(errs.RuntimeErrorKind,
			fmt.Sprintf("connect %q to network %q", containerName, networkName), err)
	}
	return nil
}

func (d *Docker) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	networks, err := d.sdk.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, "list networks", err)
	}
	infos := make([]NetworkInfo, 0, len(networks))
	for _, n := range networks {
		infos = append(infos, NetworkInfo{ID: n.ID, Name: n.Name})
	}
	return infos, nil
}

func (d *Docker) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	nodes, err := d.sdk.NodeList(ctx, swarm.NodeListOptions{})
	if err != nil {
		return nil, errs.Wrap(errs.RuntimeErrorKind, "list swarm nodes", err)
	}
	infos := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		infos = append(infos, NodeInfo{
			ID:       n.ID,
			Hostname: n.Description.Hostname,
			Role:     string(n.Spec.Role),
			Status:   string(n.Status.State),
		})
	}
	return infos, nil
}

func (d *Docker) IsSwarmEnabled(ctx context.Context) (bool, error) {
	info, err := d.sdk.SwarmInspect(ctx)
	if err != nil {
		// An inactive swarm returns an error from the API; treat that as
		// "not enabled" rather than a runtime failure.
		return false, nil
	}
	return info.ID != "", nil
}

func (d *Docker) SwarmInit(ctx context.Context, listenAddr string) error {
	_, err := d.sdk.SwarmInit(ctx, swarm.InitRequest{
		ListenAddr:      listenAddr,
		AdvertiseAddr:   listenAddr,
		ForceNewCluster: false,
	})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, "swarm init", err)
	}
	return nil
}

func (d *Docker) SwarmJoin(ctx context.Context, listenAddr, remoteAddr, token string) error {
	err := d.sdk.SwarmJoin(ctx, swarm.JoinRequest{
		ListenAddr:  listenAddr,
		RemoteAddrs: []string{remoteAddr},
		JoinToken:   token,
	})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, "swarm join", err)
	}
	return nil
}

// MigrateNetworkToOverlay recreates a bridge network as an overlay
// network under the same name, for controllers transitioning from a
// single-host to a Swarm deployment. Any containers attached to the old
// network must be reconnected by the caller.
func (d *Docker) MigrateNetworkToOverlay(ctx context.Context, name string) error {
	existing, err := d.sdk.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("list networks for %q", name), err)
	}
	for _, n := range existing {
		if n.Name == name && n.Driver == "overlay" {
			return nil
		}
		if n.Name == name {
			if err := d.sdk.NetworkRemove(ctx, n.ID); err != nil {
				return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("remove bridge network %q", name), err)
			}
		}
	}

	_, err = d.sdk.NetworkCreate(ctx, name, network.CreateOptions{
		Driver:     "overlay",
		Attachable: true,
	})
	if err != nil {
		return errs.Wrap(errs.RuntimeErrorKind, fmt.Sprintf("create overlay network %q", name), err)
	}
	return nil
}

// translatePorts converts "HOST:CONTAINER" / "CONTAINER" strings (default
// protocol /tcp) into the Docker SDK's ExposedPorts/PortBindings shapes.
func translatePorts(ports []string) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet)
	bindings := make(nat.PortMap)

	for _, p := range ports {
		var hostPort, containerPort string
		parts := strings.SplitN(p, ":", 2)
		if len(parts) == 2 {
			hostPort, containerPort = parts[0], parts[1]
		} else {
			containerPort = parts[0]
		}
		if !strings.Contains(containerPort, "/") {
			containerPort += "/tcp"
		}
		port, err := nat.NewPort(strings.Split(containerPort, "/")[1], strings.Split(containerPort, "/")[0])
		if err != nil {
			return nil, nil, fmt.Errorf("parse port %q: %w", p, err)
		}
		exposed[port] = struct{}{}
		if hostPort != "" {
			bindings[port] = append(bindings[port], nat.PortBinding{HostPort: hostPort})
		}
	}
	return exposed, bindings, nil
}

// translateVolumes converts "HOST:CONTAINER[:MODE]" strings into Docker
// mounts: a leading "/" or "." on the host side means a bind mount,
// anything else is a named volume.
func translateVolumes(volumes []string) ([]mount.Mount, error) {
	if len(volumes) == 0 {
		return nil, nil
	}
	mounts := make([]mount.Mount, 0, len(volumes))
	for _, v := range volumes {
		parts := strings.SplitN(v, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed volume spec %q", v)
		}
		host, target := parts[0], parts[1]
		readOnly := len(parts) == 3 && parts[2] == "ro"

		mountType := mount.TypeVolume
		if strings.HasPrefix(host, "/") || strings.HasPrefix(host, ".") {
			mountType = mount.TypeBind
		}

		mounts = append(mounts, mount.Mount{
			Type:     mountType,
			Source:   host,
			Target:   target,
			ReadOnly: readOnly,
		})
	}
	return mounts, nil
}
