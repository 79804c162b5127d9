package compose

import (
	"fmt"
	"strings"

	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sasta-kro/labuh-go/runtime"
)

// ContainerName returns the deterministic name every managed container is
// created and discovered under: "{stackName}-{serviceName}".
func ContainerName(stackName, serviceName string) string {
	return fmt.Sprintf("%s-%s", stackName, serviceName)
}

// ToContainerConfig translates a parsed, normalized service into the
// runtime-agnostic shape runtime.Port.CreateContainer consumes, stamping
// it with the labels the stack engine and metrics collector use to find
// the container again.
func ToContainerConfig(service ParsedService, stackID, stackName string) runtime.ContainerConfig {
	labels := make(map[string]string, len(service.Labels)+4)
	for k, v := range service.Labels {
		labels[k] = v
	}
	labels["labuh.managed"] = "true"
	labels["labuh.stack.id"] = stackID
	labels["labuh.stack.name"] = stackName
	labels["labuh.service.name"] = service.Name

	ports := make([]string, 0, len(service.Ports))
	for containerPort, hostPort := range service.Ports {
		if hostPort == "" {
			ports = append(ports, containerPort)
			continue
		}
		ports = append(ports, fmt.Sprintf("%s:%s", hostPort, containerPort))
	}

	volumes := make([]string, 0, len(service.Volumes))
	for hostPath, containerPath := range service.Volumes {
		volumes = append(volumes, fmt.Sprintf("%s:%s", hostPath, containerPath))
	}

	var platform *specs.Platform
	if service.Deploy != nil {
		platform = platformFromConstraints(service.Deploy.Placement.Constraints)
	}

	return runtime.ContainerConfig{
		Name:          ContainerName(stackName, service.Name),
		Image:         service.Image,
		Env:           service.Env,
		Ports:         ports,
		Volumes:       volumes,
		Labels:        labels,
		CPULimit:      service.CPULimit,
		MemoryLimit:   service.MemoryLimit,
		RestartPolicy: "unless-stopped",
		Platform:      platform,
	}
}

// platformFromConstraints reads Swarm-style "node.platform.os == X" and
// "node.platform.arch == X" placement constraints into an OCI platform.
// Any other constraint kind (e.g. node labels) is ignored here; it is not
// expressible as a single-container runtime.Port operation.
func platformFromConstraints(constraints []string) *specs.Platform {
	var platform specs.Platform
	found := false

	for _, c := range constraints {
		key, value, ok := splitConstraint(c)
		if !ok {
			continue
		}
		switch key {
		case "node.platform.os":
			platform.OS = value
			found = true
		case "node.platform.arch":
			platform.Architecture = value
			found = true
		}
	}

	if !found {
		return nil
	}
	return &platform
}

// splitConstraint parses "key == value" or "key==value" into (key, value).
func splitConstraint(constraint string) (key, value string, ok bool) {
	sep := "=="
	idx := strings.Index(constraint, sep)
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(constraint[:idx])
	value = strings.TrimSpace(constraint[idx+len(sep):])
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
