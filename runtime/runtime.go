// Package runtime defines the RuntimePort contract: the capability set
// the stack lifecycle engine, proxy bootstrap, and automation loop
// consume to manage containers, networks, and Swarm membership. The core
// never imports the Docker SDK directly — only runtime.Docker does.
package runtime

import (
	"context"
	"io"

	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// ContainerConfig is the runtime-agnostic description of a container to
// create, translated from a compose.ParsedService by
// compose.ToContainerConfig.
type ContainerConfig struct {
	Name           string
	Image          string
	Env            []string // KEY=VALUE
	Ports          []string // "HOST:CONTAINER" or "CONTAINER" (default /tcp)
	Volumes        []string // "HOST:CONTAINER" or "HOST:CONTAINER:MODE"
	Labels         map[string]string
	CPULimit       *float64
	MemoryLimit    *int64
	Cmd            []string
	NetworkMode    string
	ExtraHosts     []string
	RestartPolicy  string

	// Platform constrains which OCI platform the container must run on,
	// derived from a compose service's deploy.placement.constraints
	// (e.g. "node.platform.os == linux"). Nil means no constraint.
	Platform *specs.Platform
}

// ContainerInfo is the runtime-agnostic view of a listed/inspected
// container. Names are Docker-style, each prefixed "/".
type ContainerInfo struct {
	ID     string
	Names  []string
	Image  string
	State  string
	Status string
	Labels map[string]string
}

// ContainerStats is the per-container resource sample the metrics
// collector reads each tick.
type ContainerStats struct {
	CPUPercent  float64
	MemoryUsage int64
}

// NetworkInfo is a runtime-agnostic view of a Docker network.
type NetworkInfo struct {
	ID   string
	Name string
}

// NodeInfo is a Swarm node, reported only when Swarm is enabled.
type NodeInfo struct {
	ID       string
	Hostname string
	Role     string
	Status   string
}

// ExecHandle identifies an exec instance created by ExecCommand, to be
// attached to via ConnectExec.
type ExecHandle struct {
	ID string
}

// RegistryAuth is the credential pair passed to PullImage when the image
// reference resolves to a registry with a stored RegistryCredential.
type RegistryAuth struct {
	Username string
	Password string
}

// Port is the capability set the core consumes from a container runtime.
// The only implementation is Docker (runtime.Docker); the interface
// exists so the stack engine, proxy bootstrap, and automation loop never
// import the Docker SDK.
type Port interface {
	PullImage(ctx context.Context, image string, auth *RegistryAuth) error
	CreateContainer(ctx context.Context, config ContainerConfig) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, force bool) error
	ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error)
	InspectContainer(ctx context.Context, id string) (ContainerInfo, error)
	GetLogs(ctx context.Context, id string, tail int) ([]string, error)
	GetStats(ctx context.Context, id string) (ContainerStats, error)
	ExecCommand(ctx context.Context, id string, argv []string) (ExecHandle, error)
	ConnectExec(ctx context.Context, handle ExecHandle) (io.Reader, io.WriteCloser, error)
	EnsureNetwork(ctx context.Context, name string) error
	ConnectNetwork(ctx context.Context, containerName, network string) error
	ListNetworks(ctx context.Context) ([]NetworkInfo, error)
	ListNodes(ctx context.Context) ([]NodeInfo, error)
	IsSwarmEnabled(ctx context.Context) (bool, error)
	SwarmInit(ctx context.Context, listenAddr string) error
	SwarmJoin(ctx context.Context, listenAddr, remoteAddr, token string) error
	MigrateNetworkToOverlay(ctx context.Context, name string) error
}
