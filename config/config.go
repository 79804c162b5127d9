// Package config loads application configuration from environment
// variables. All values have defaults so the binary starts with zero
// environment setup during local development.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// AppConfig holds every configuration value the control plane needs.
// Values are read once at startup and passed through via dependency
// injection; there is no global config variable.
type AppConfig struct {
	// Port is the TCP port the HTTP server listens on.
	Port string

	// DBPath is the SQLite database file path.
	DBPath string

	// OverlayNetwork is the Docker network every managed container and
	// the proxy container attach to.
	OverlayNetwork string

	// ProxyAdminURL is the base URL of the proxy's admin configuration
	// API, e.g. "http://localhost:2019".
	ProxyAdminURL string

	// CaddyImage is the image reference pulled for the proxy container.
	CaddyImage string

	// CaddyConfigHostPath is the host filesystem path bind-mounted into
	// the proxy container as its bootstrap Caddyfile.json.
	CaddyConfigHostPath string

	// CaddyVersion is the compiled-in version tag compared against the
	// running proxy container's labuh.caddy.version label during bootstrap.
	CaddyVersion string

	// PublicIP is the DNS target used for Caddy-type domains
	// (LABUH_PUBLIC_IP). Falls back to 127.0.0.1.
	PublicIP string

	// LogFormat selects slog's handler: "text" for local development,
	// anything else (including "json") for structured production output.
	LogFormat string

	// AllowedOrigin is the CORS Access-Control-Allow-Origin value for the
	// frontend's origin.
	AllowedOrigin string
}

// NewLogger builds a *slog.Logger from the LogFormat field. AddSource is
// always on; ReplaceAttr trims the source file path to its basename so
// log lines stay readable.
func (c *AppConfig) NewLogger() *slog.Logger {
	var handler slog.Handler

	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(groups []string, attribute slog.Attr) slog.Attr {
			if attribute.Key == slog.SourceKey {
				source := attribute.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attribute
		},
	}

	if c.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, options)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}

	return slog.New(handler)
}

// LoadAppConfig reads configuration from environment variables, falling
// back to local development defaults for anything unset.
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Port:                getEnv("PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "./labuh.db"),
		OverlayNetwork:      getEnv("LABUH_NETWORK", "labuh-network"),
		ProxyAdminURL:       getEnv("LABUH_PROXY_ADMIN_URL", "http://localhost:2019"),
		CaddyImage:          getEnv("LABUH_CADDY_IMAGE", "caddy:2-alpine"),
		CaddyConfigHostPath: getEnv("LABUH_CADDY_CONFIG_PATH", "./labuh-caddy.json"),
		CaddyVersion:        getEnv("LABUH_CADDY_VERSION", "v1"),
		PublicIP:            getEnv("LABUH_PUBLIC_IP", "127.0.0.1"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		AllowedOrigin:       getEnv("LABUH_ALLOWED_ORIGIN", "*"),
	}
}

// getEnv returns the environment variable named key, or fallbackValue if
// it is unset or empty.
func getEnv(key, fallbackValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallbackValue
}
