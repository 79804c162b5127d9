// Package compose parses and validates Docker Compose manifests into the
// ordered, normalized service list the stack lifecycle engine deploys
// from, and translates each parsed service into a runtime.ContainerConfig.
package compose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/sasta-kro/labuh-go/errs"
)

// ParsedCompose is the ordered, normalized result of parsing a manifest.
type ParsedCompose struct {
	Services []ParsedService
	Networks []string
}

// ParsedService is one service entry, fully normalized.
type ParsedService struct {
	Name         string
	Image        string
	Env          []string
	Ports        map[string]string // container port -> host port
	Volumes      map[string]string // host path/volume -> container path
	DependsOn    []string
	Networks     []string
	Labels       map[string]string
	Build        *ParsedBuild
	CPULimit     *float64
	MemoryLimit  *int64
	Deploy       *ParsedDeploy
}

// ParsedBuild is a normalized build context.
type ParsedBuild struct {
	Context    string
	Dockerfile string
}

// ParsedDeploy carries the deploy block's replica count and placement.
type ParsedDeploy struct {
	Replicas  *uint32
	Placement ParsedPlacement
}

// ParsedPlacement carries Swarm-style placement constraints.
type ParsedPlacement struct {
	Constraints []string
}

// rawFile mirrors the subset of the Compose schema the control plane
// consumes. environment and build accept either of the Compose spec's
// shorthand forms, handled by composeEnvironment/composeBuild below.
type rawFile struct {
	Services map[string]rawService `yaml:"services"`
	Networks map[string]struct{}   `yaml:"networks"`
}

type rawService struct {
	Image       *string            `yaml:"image"`
	Build       *composeBuild      `yaml:"build"`
	Environment composeEnvironment `yaml:"environment"`
	Ports       []string           `yaml:"ports"`
	Volumes     []string           `yaml:"volumes"`
	DependsOn   []string           `yaml:"depends_on"`
	Networks    []string           `yaml:"networks"`
	Labels      map[string]string  `yaml:"labels"`
	Deploy      *rawDeploy         `yaml:"deploy"`
}

type rawDeploy struct {
	Replicas  *uint32       `yaml:"replicas"`
	Resources *rawResources `yaml:"resources"`
	Placement rawPlacement  `yaml:"placement"`
}

type rawResources struct {
	Limits *rawLimits `yaml:"limits"`
}

type rawLimits struct {
	CPUs   *string `yaml:"cpus"`
	Memory *string `yaml:"memory"`
}

type rawPlacement struct {
	Constraints []string `yaml:"constraints"`
}

// composeBuild accepts either a bare context string or an extended map
// with context/dockerfile, per the Compose spec's "build" shorthand.
type composeBuild struct {
	Context    string
	Dockerfile string
	hasDockerfile bool
}

func (b *composeBuild) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		b.Context = value.Value
		return nil
	}
	var extended struct {
		Context    string  `yaml:"context"`
		Dockerfile *string `yaml:"dockerfile"`
	}
	if err := value.Decode(&extended); err != nil {
		return err
	}
	b.Context = extended.Context
	if extended.Dockerfile != nil {
		b.Dockerfile = *extended.Dockerfile
		b.hasDockerfile = true
	}
	return nil
}

// composeEnvironment accepts either a list of KEY=VALUE strings or a
// mapping of key to scalar value, per the Compose spec's "environment"
// shorthand. Null-valued and complex-typed map entries are dropped.
type composeEnvironment struct {
	list []string
}

func (e *composeEnvironment) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		e.list = list
		return nil
	case yaml.MappingNode:
		var raw map[string]yaml.Node
		if err := value.Decode(&raw); err != nil {
			return err
		}
		entries := make([]string, 0, len(raw))
		for k, v := range raw {
			str, ok := scalarString(v)
			if !ok {
				continue
			}
			entries = append(entries, fmt.Sprintf("%s=%s", k, str))
		}
		sort.Strings(entries)
		e.list = entries
		return nil
	default:
		e.list = nil
		return nil
	}
}

// scalarString stringifies a YAML scalar (bool, number, string); it
// returns ok=false for null or any non-scalar node, matching the
// null-drops / complex-drops normalization rule.
func scalarString(n yaml.Node) (string, bool) {
	if n.Kind != yaml.ScalarNode {
		return "", false
	}
	switch n.Tag {
	case "!!null":
		return "", false
	default:
		return n.Value, true
	}
}

// Parse decodes a Compose YAML manifest into a ParsedCompose: every
// service is normalized (build/image resolution, environment
// flattening, port/volume splitting, memory-string parsing) and the
// volume security gate is applied before anything is returned.
func Parse(yamlContent string) (*ParsedCompose, error) {
	var file rawFile
	if err := yaml.Unmarshal([]byte(yamlContent), &file); err != nil {
		return nil, errs.New(errs.Validation, fmt.Sprintf("invalid compose file: %v", err))
	}

	services := make([]ParsedService, 0, len(file.Services))
	for name, svc := range file.Services {
		parsed, err := parseService(name, svc)
		if err != nil {
			return nil, err
		}
		services = append(services, parsed)
	}

	sortServices(services)

	networks := make([]string, 0, len(file.Networks))
	for name := range file.Networks {
		networks = append(networks, name)
	}
	sort.Strings(networks)

	return &ParsedCompose{Services: services, Networks: networks}, nil
}

func parseService(name string, svc rawService) (ParsedService, error) {
	var build *ParsedBuild
	if svc.Build != nil {
		dockerfile := svc.Build.Dockerfile
		if !svc.Build.hasDockerfile || dockerfile == "" {
			dockerfile = "Dockerfile"
		}
		build = &ParsedBuild{Context: svc.Build.Context, Dockerfile: dockerfile}
	}

	var image string
	switch {
	case svc.Image != nil:
		image = *svc.Image
	case build != nil:
		image = fmt.Sprintf("labuh-local/%s", name)
	default:
		return ParsedService{}, errs.New(errs.Validation,
			fmt.Sprintf("service '%s' must have an image or build context", name))
	}

	if _, err := ValidateVolumeSecurity(svc.Volumes); err != nil {
		return ParsedService{}, err
	}

	ports := make(map[string]string)
	for _, portStr := range svc.Ports {
		parts := strings.SplitN(portStr, ":", 2)
		if len(parts) != 2 {
			continue
		}
		hostPort := parts[0]
		containerPort := strings.SplitN(parts[1], "/", 2)[0]
		ports[containerPort] = hostPort
	}

	volumes := make(map[string]string)
	for _, volStr := range svc.Volumes {
		parts := strings.SplitN(volStr, ":", 2)
		if len(parts) < 2 {
			continue
		}
		volumes[parts[0]] = parts[1]
	}

	var cpuLimit *float64
	var memoryLimit *int64
	var deploy *ParsedDeploy
	if svc.Deploy != nil {
		placement := ParsedPlacement{Constraints: svc.Deploy.Placement.Constraints}
		deploy = &ParsedDeploy{Replicas: svc.Deploy.Replicas, Placement: placement}

		if svc.Deploy.Resources != nil && svc.Deploy.Resources.Limits != nil {
			limits := svc.Deploy.Resources.Limits
			if limits.CPUs != nil {
				if v, err := strconv.ParseFloat(*limits.CPUs, 64); err == nil {
					cpuLimit = &v
				}
			}
			if limits.Memory != nil {
				if v, err := parseMemory(*limits.Memory); err == nil {
					memoryLimit = &v
				}
			}
		}
	}

	return ParsedService{
		Name:        name,
		Image:       image,
		Env:         svc.Environment.list,
		Ports:       ports,
		Volumes:     volumes,
		DependsOn:   svc.DependsOn,
		Networks:    svc.Networks,
		Labels:      svc.Labels,
		Build:       build,
		CPULimit:    cpuLimit,
		MemoryLimit: memoryLimit,
		Deploy:      deploy,
	}, nil
}

// parseMemory parses a Compose memory limit string ("256M", "1G",
// "1024") into a byte count using binary (1024-based) suffixes.
func parseMemory(memory string) (int64, error) {
	return units.RAMInBytes(memory)
}

// sortServices orders services so that for every pair where a depends on
// b, b precedes a. This is a simple pairwise bubble sort, not a full
// topological sort — it is not guaranteed correct for cyclic or deeply
// transitive dependency graphs, matching the reference behavior.
func sortServices(services []ParsedService) {
	n := len(services)
	for i := 0; i < n; i++ {
		for j := 0; j < n-i-1; j++ {
			if less(services[j+1], services[j]) {
				services[j], services[j+1] = services[j+1], services[j]
			}
		}
	}
}

// less reports whether a sorts strictly before b.
func less(a, b ParsedService) bool {
	switch {
	case contains(a.DependsOn, b.Name):
		return false // a depends on b: b sorts first
	case contains(b.DependsOn, a.Name):
		return true // b depends on a: a sorts first
	default:
		return a.Name < b.Name
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
