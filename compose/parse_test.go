package compose

import "testing"

func TestParse_OrdersServicesByDependency(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx
    depends_on:
      - api
  api:
    image: my-api
    depends_on:
      - db
  db:
    image: postgres
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	index := make(map[string]int, len(parsed.Services))
	for i, svc := range parsed.Services {
		index[svc.Name] = i
	}

	if index["db"] >= index["api"] {
		t.Errorf("expected db before api, got order %v", index)
	}
	if index["api"] >= index["web"] {
		t.Errorf("expected api before web, got order %v", index)
	}
}

func TestParse_DefaultsImageFromBuildContext(t *testing.T) {
	yaml := `
services:
  app:
    build: ./app
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(parsed.Services))
	}
	svc := parsed.Services[0]
	if svc.Image != "labuh-local/app" {
		t.Errorf("expected image 'labuh-local/app', got %q", svc.Image)
	}
	if svc.Build == nil || svc.Build.Context != "./app" || svc.Build.Dockerfile != "Dockerfile" {
		t.Errorf("unexpected build %+v", svc.Build)
	}
}

func TestParse_ExtendedBuildWithDockerfile(t *testing.T) {
	yaml := `
services:
  app:
    build:
      context: ./app
      dockerfile: Dockerfile.prod
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := parsed.Services[0]
	if svc.Build.Dockerfile != "Dockerfile.prod" {
		t.Errorf("expected Dockerfile.prod, got %q", svc.Build.Dockerfile)
	}
}

func TestParse_RejectsServiceWithNoImageOrBuild(t *testing.T) {
	yaml := `
services:
  app:
    ports:
      - "8080:8080"
`
	_, err := Parse(yaml)
	if err == nil {
		t.Fatal("expected error for service with neither image nor build")
	}
}

func TestParse_EnvironmentAsList(t *testing.T) {
	yaml := `
services:
  app:
    image: alpine
    environment:
      - FOO=bar
      - BAZ=qux
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := parsed.Services[0].Env
	if len(env) != 2 {
		t.Fatalf("expected 2 env entries, got %v", env)
	}
}

func TestParse_EnvironmentAsMap(t *testing.T) {
	yaml := `
services:
  app:
    image: alpine
    environment:
      FOO: bar
      BAZ: qux
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := parsed.Services[0].Env
	if len(env) != 2 {
		t.Fatalf("expected 2 env entries, got %v", env)
	}
}

func TestParse_MemoryLimitSuffixes(t *testing.T) {
	yaml := `
services:
  app:
    image: alpine
    deploy:
      resources:
        limits:
          cpus: "0.5"
          memory: "256M"
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := parsed.Services[0]
	if svc.MemoryLimit == nil || *svc.MemoryLimit != 256*1024*1024 {
		t.Errorf("expected 256MiB, got %v", svc.MemoryLimit)
	}
	if svc.CPULimit == nil || *svc.CPULimit != 0.5 {
		t.Errorf("expected cpu limit 0.5, got %v", svc.CPULimit)
	}
}

func TestParse_EmptyComposeFile(t *testing.T) {
	parsed, err := Parse("services: {}\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Services) != 0 {
		t.Errorf("expected no services, got %d", len(parsed.Services))
	}
}

func TestToContainerConfig_NamesAndLabels(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx
    ports:
      - "8080:80"
`
	parsed, err := Parse(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := ToContainerConfig(parsed.Services[0], "stack-1", "myapp")
	if cfg.Name != "myapp-web" {
		t.Errorf("expected container name 'myapp-web', got %q", cfg.Name)
	}
	if cfg.Labels["labuh.stack.id"] != "stack-1" {
		t.Errorf("expected labuh.stack.id label, got %v", cfg.Labels)
	}
	if cfg.Labels["labuh.service.name"] != "web" {
		t.Errorf("expected labuh.service.name label, got %v", cfg.Labels)
	}
	if cfg.RestartPolicy != "unless-stopped" {
		t.Errorf("expected unless-stopped restart policy, got %q", cfg.RestartPolicy)
	}
}

func TestPlatformFromConstraints(t *testing.T) {
	platform := platformFromConstraints([]string{"node.platform.os == linux", "node.role == worker"})
	if platform == nil {
		t.Fatal("expected a platform to be derived")
	}
	if platform.OS != "linux" {
		t.Errorf("expected OS linux, got %q", platform.OS)
	}
}

func TestPlatformFromConstraints_NoMatch(t *testing.T) {
	if platformFromConstraints([]string{"node.labels.zone == us-east"}) != nil {
		t.Error("expected nil platform when no platform constraints present")
	}
}
