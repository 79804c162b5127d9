package compose

import (
	"fmt"
	"strings"

	"github.com/sasta-kro/labuh-go/errs"
)

// blockedHostPaths are host mount roots that must never be bind-mounted
// into a managed container. Checked by exact match or as a path prefix.
var blockedHostPaths = []string{
	"/bin", "/boot", "/dev", "/etc", "/home", "/lib", "/lib64", "/opt",
	"/proc", "/root", "/run", "/sbin", "/sys", "/tmp", "/usr", "/var",
}

// ValidateVolumeSecurity checks every "host:container[:mode]" volume
// string against the host-path sandbox. A rejection fails the whole
// parse; non-fatal findings are returned as warnings.
func ValidateVolumeSecurity(volumes []string) ([]string, error) {
	var warnings []string

	for _, vol := range volumes {
		parts := strings.SplitN(vol, ":", 2)
		if len(parts) < 2 {
			continue
		}
		hostPath := parts[0]

		if strings.Contains(hostPath, "..") {
			return nil, errs.New(errs.Validation,
				fmt.Sprintf("volume '%s' contains path traversal (..) which is not allowed", vol))
		}

		if hostPath == "/" {
			return nil, errs.New(errs.Validation, "mounting root filesystem (/) is not allowed")
		}

		// Named volumes (no leading / or .) are always allowed.
		if !strings.HasPrefix(hostPath, "/") && !strings.HasPrefix(hostPath, ".") {
			continue
		}

		if strings.HasPrefix(hostPath, "./") {
			warnings = append(warnings, fmt.Sprintf("volume '%s' uses relative path", vol))
			continue
		}

		for _, blocked := range blockedHostPaths {
			if hostPath == blocked || strings.HasPrefix(hostPath, blocked+"/") {
				return nil, errs.New(errs.Validation,
					fmt.Sprintf("volume '%s' mounts sensitive path '%s' which is not allowed", vol, blocked))
			}
		}

		if strings.HasPrefix(hostPath, "/") {
			warnings = append(warnings, fmt.Sprintf("volume '%s' uses absolute host path - ensure this is intentional", vol))
		}
	}

	return warnings, nil
}
