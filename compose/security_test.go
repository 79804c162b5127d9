package compose

import (
	"strings"
	"testing"
)

func TestValidateVolumeSecurity_BlocksRootMount(t *testing.T) {
	_, err := ValidateVolumeSecurity([]string{"/:/container"})
	if err == nil {
		t.Fatal("expected error for root mount")
	}
	if !strings.Contains(err.Error(), "root filesystem") {
		t.Errorf("expected 'root filesystem' in error, got: %v", err)
	}
}

func TestValidateVolumeSecurity_BlocksEtcMount(t *testing.T) {
	_, err := ValidateVolumeSecurity([]string{"/etc:/etc"})
	if err == nil {
		t.Fatal("expected error for /etc mount")
	}
	if !strings.Contains(err.Error(), "/etc") {
		t.Errorf("expected '/etc' in error, got: %v", err)
	}
}

func TestValidateVolumeSecurity_BlocksPathTraversal(t *testing.T) {
	_, err := ValidateVolumeSecurity([]string{"../../../etc:/etc"})
	if err == nil {
		t.Fatal("expected error for path traversal")
	}
	if !strings.Contains(err.Error(), "path traversal") {
		t.Errorf("expected 'path traversal' in error, got: %v", err)
	}
}

func TestValidateVolumeSecurity_AllowsNamedVolumes(t *testing.T) {
	warnings, err := ValidateVolumeSecurity([]string{"postgres_data:/var/lib/postgresql/data"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings for named volume, got: %v", warnings)
	}
}

func TestValidateVolumeSecurity_AllowsRelativePathsWithWarning(t *testing.T) {
	warnings, err := ValidateVolumeSecurity([]string{"./data:/app/data"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for relative path mount")
	}
}

func TestValidateVolumeSecurity_BlocksVarMount(t *testing.T) {
	_, err := ValidateVolumeSecurity([]string{"/var/log:/logs"})
	if err == nil {
		t.Fatal("expected error for /var mount")
	}
}

func TestValidateVolumeSecurity_AllowsAbsoluteOutsideBlocklistWithWarning(t *testing.T) {
	warnings, err := ValidateVolumeSecurity([]string{"/srv/app-data:/data"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for non-blocklisted absolute path mount")
	}
}

func TestParseCompose_RejectsDangerousVolume(t *testing.T) {
	yaml := `
services:
  evil:
    image: alpine
    volumes:
      - /:/host
`
	_, err := Parse(yaml)
	if err == nil {
		t.Fatal("expected parse error for dangerous volume")
	}
}
