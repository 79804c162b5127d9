// Package proxy administers the reverse proxy (a Caddy-compatible daemon)
// through its JSON config API: bootstrapping the container, and keeping
// its route table in sync with the domains the control plane manages.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/runtime"
)

// CaddyVersion is the compiled-in label value bootstrap compares against
// a running proxy container's labuh.caddy.version label to decide whether
// it needs to be recreated.
const CaddyVersion = "v1"

const (
	containerName = "labuh-caddy"
	configPath    = "/etc/caddy/Caddyfile.json"
	dataVolume    = "labuh_caddy_data"
	configVolume  = "labuh_caddy_config"
)

// minimalBootstrapConfig enables only the admin API, listening on every
// interface so the host-network admin port binding can reach it before
// any route is ever installed.
const minimalBootstrapConfig = `{"admin":{"listen":"0.0.0.0:2019"}}`

// Client administers the proxy's admin API and owns bootstrapping its
// container via the runtime port.
type Client struct {
	baseURL        string
	http           *http.Client
	runtime        runtime.Port
	network        string
	image          string
	configHostPath string
	logger         *slog.Logger
}

// NewClient builds a proxy client pointed at the configured admin URL.
// configHostPath is the host filesystem path bind-mounted into the
// container as its bootstrap Caddyfile.json.
func NewClient(baseURL, network, image, configHostPath string, rt runtime.Port, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		runtime:        rt,
		network:        network,
		image:          image,
		configHostPath: configHostPath,
		logger:         logger,
	}
}

// route is the JSON shape of one Caddy route under srv0.
type route struct {
	Match  []matcher `json:"match"`
	Handle []handler `json:"handle"`
}

type matcher struct {
	Host []string `json:"host"`
}

type handler struct {
	Handler        string          `json:"handler"`
	Upstreams      []upstream      `json:"upstreams,omitempty"`
	Routes         []route         `json:"routes,omitempty"`          // subroute
	HandleResponse []handleRespCfg `json:"handle_response,omitempty"` // reverse_proxy
	Replacements   []replacement   `json:"replacements,omitempty"`    // replace_response
}

// badgeHTML is injected just before </body> when a domain has
// show_branding enabled.
const badgeHTML = `<div id="labuh-badge">deployed with labuh</div>`

type upstream struct {
	Dial string `json:"dial"`
}

type handleRespCfg struct {
	Match  []respMatcher `json:"match,omitempty"`
	Routes []route       `json:"routes"`
}

type respMatcher struct {
	Headers map[string][]string `json:"headers,omitempty"`
}

// replacement is the config shape for the replace_response handler that
// injects the branding badge before </body> on HTML responses.
type replacement struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

type server struct {
	Listen []string `json:"listen"`
	Routes []route  `json:"routes"`
}

// AddRouteRequest describes the domain route to install.
type AddRouteRequest struct {
	Domain       string
	UpstreamHost string
	UpstreamPort int
	ShowBranding bool
}

// Bootstrap ensures the proxy container exists, is current, and running,
// creating and starting it from scratch if necessary.
func (c *Client) Bootstrap(ctx context.Context) error {
	if err := c.runtime.EnsureNetwork(ctx, c.network); err != nil {
		return fmt.Errorf("ensure overlay network: %w", err)
	}

	containers, err := c.runtime.ListContainers(ctx, true)
	if err != nil {
		return fmt.Errorf("list containers for proxy bootstrap: %w", err)
	}

	var existing *runtime.ContainerInfo
	for i := range containers {
		for _, name := range containers[i].Names {
			if strings.TrimPrefix(name, "/") == containerName {
				existing = &containers[i]
			}
		}
	}

	if existing != nil {
		if existing.Labels["labuh.caddy.version"] != CaddyVersion {
			if err := c.runtime.RemoveContainer(ctx, existing.ID, true); err != nil {
				return fmt.Errorf("remove stale proxy container: %w", err)
			}
			existing = nil
		} else if existing.State == "running" {
			return nil
		} else {
			return c.runtime.StartContainer(ctx, existing.ID)
		}
	}

	return c.createAndStart(ctx)
}

func (c *Client) createAndStart(ctx context.Context) error {
	if err := c.runtime.PullImage(ctx, c.image, nil); err != nil {
		return fmt.Errorf("pull proxy image: %w", err)
	}

	if err := c.ensureHostConfigFile(); err != nil {
		return fmt.Errorf("ensure host caddy config: %w", err)
	}

	cfg := runtime.ContainerConfig{
		Name:  containerName,
		Image: c.image,
		Ports: []string{
			"80:80",
			"443:443",
			"127.0.0.1:2019:2019",
		},
		Volumes: []string{
			fmt.Sprintf("%s:%s", c.configHostPath, configPath),
			fmt.Sprintf("%s:/data", dataVolume),
			fmt.Sprintf("%s:/config", configVolume),
		},
		Labels: map[string]string{
			"labuh.managed":       "true",
			"labuh.service":       "caddy",
			"labuh.caddy.version": CaddyVersion,
		},
		NetworkMode:   c.network,
		RestartPolicy: "always",
	}

	id, err := c.runtime.CreateContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create proxy container: %w", err)
	}
	return c.runtime.StartContainer(ctx, id)
}

// ensureHostConfigFile guarantees c.configHostPath exists and is non-empty
// before the container is created, writing a config that enables only the
// admin API if the file is absent or zero-length. An already-populated
// file (e.g. one carried over from a prior bootstrap) is left untouched.
func (c *Client) ensureHostConfigFile() error {
	info, err := os.Stat(c.configHostPath)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(c.configHostPath, []byte(minimalBootstrapConfig), 0o644)
}

// EnsureSrv0 guarantees srv0 exists and listens on :443, preserving any
// existing routes.
func (c *Client) EnsureSrv0(ctx context.Context) error {
	var srv server
	found, err := c.getJSON(ctx, "/config/apps/http/servers/srv0", &srv)
	if err != nil {
		return fmt.Errorf("get srv0: %w", err)
	}

	if found {
		if contains(srv.Listen, ":443") {
			return nil
		}
		srv.Listen = []string{":443"}
		return c.putJSON(ctx, "/config/apps/http/servers/srv0", srv)
	}

	fresh := server{Listen: []string{":443"}, Routes: []route{}}
	if err := c.putJSON(ctx, "/config/apps/http/servers/srv0", fresh); err != nil {
		return c.putJSON(ctx, "/config/apps/http", map[string]any{
			"servers": map[string]server{"srv0": fresh},
		})
	}
	return nil
}

// AddRoute installs (or replaces) the route for req.Domain, always
// inserting it at index 0 so newer routes win ties over older ones.
func (c *Client) AddRoute(ctx context.Context, req AddRouteRequest) error {
	if err := c.EnsureSrv0(ctx); err != nil {
		return err
	}
	if err := c.RemoveRoute(ctx, req.Domain); err != nil && !errors.Is(err, errRouteNotFound) {
		return fmt.Errorf("remove existing route before re-add: %w", err)
	}

	reverseProxy := handler{
		Handler:   "reverse_proxy",
		Upstreams: []upstream{{Dial: fmt.Sprintf("%s:%d", req.UpstreamHost, req.UpstreamPort)}},
	}

	var handlers []handler
	if req.ShowBranding {
		handlers = []handler{{
			Handler: "subroute",
			Routes: []route{{
				Handle: []handler{
					reverseProxy,
					{
						Handler: "handle_response",
						HandleResponse: []handleRespCfg{{
							Match: []respMatcher{{Headers: map[string][]string{"Content-Type": {"*text/html*"}}}},
							Routes: []route{{
								Handle: []handler{{
									Handler:      "replace_response",
									Replacements: []replacement{{Search: "</body>", Replace: badgeHTML + "</body>"}},
								}},
							}},
						}},
					},
				},
			}},
		}}
	} else {
		handlers = []handler{reverseProxy}
	}

	newRoute := route{
		Match:  []matcher{{Host: []string{req.Domain}}},
		Handle: handlers,
	}

	return c.postJSON(ctx, "/config/apps/http/servers/srv0/routes/0", newRoute)
}

var errRouteNotFound = errors.New("route not found")

// RemoveRoute deletes every route matching domain (handles duplicates by
// looping until a pass finds none). Returns errRouteNotFound, a non-fatal
// condition for removal callers, if nothing was ever found.
func (c *Client) RemoveRoute(ctx context.Context, domain string) error {
	foundAny := false
	for {
		var routes []route
		if _, err := c.getJSON(ctx, "/config/apps/http/servers/srv0/routes", &routes); err != nil {
			return fmt.Errorf("get routes: %w", err)
		}

		index := -1
		for i, r := range routes {
			if len(r.Match) > 0 && contains(r.Match[0].Host, domain) {
				index = i
				break
			}
		}
		if index < 0 {
			break
		}
		foundAny = true
		if err := c.deletePath(ctx, fmt.Sprintf("/config/apps/http/servers/srv0/routes/%d", index)); err != nil {
			return fmt.Errorf("delete route at index %d: %w", index, err)
		}
	}

	if !foundAny {
		return errRouteNotFound
	}
	return nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// do sends req against the configured base URL, retrying once against
// "caddy" in place of "localhost" if the first attempt is a connection
// refusal — covering the host-network-to-overlay-network transition.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err == nil {
		return resp, nil
	}

	if !strings.Contains(req.URL.Host, "localhost") || !isConnRefused(err) {
		return nil, err
	}

	retryURL := strings.Replace(req.URL.String(), "localhost", "caddy", 1)
	retryReq, buildErr := http.NewRequestWithContext(req.Context(), req.Method, retryURL, req.Body)
	if buildErr != nil {
		return nil, err
	}
	retryReq.Header = req.Header
	return c.http.Do(retryReq)
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && strings.Contains(opErr.Error(), "connection refused")
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, errs.Wrap(errs.ProxyErrorKind, "request to proxy admin api", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return false, errs.New(errs.ProxyErrorKind, fmt.Sprintf("proxy admin api GET %s: %d %s", path, resp.StatusCode, body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response for %s: %w", path, err)
		}
	}
	return true, nil
}

func (c *Client) putJSON(ctx context.Context, path string, body any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	return c.sendJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return errs.Wrap(errs.ProxyErrorKind, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return errs.New(errs.ProxyErrorKind, fmt.Sprintf("proxy admin api %s %s: %d %s", method, path, resp.StatusCode, respBody))
	}
	return nil
}

func (c *Client) deletePath(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return errs.Wrap(errs.ProxyErrorKind, "DELETE "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return errs.New(errs.ProxyErrorKind, fmt.Sprintf("proxy admin api DELETE %s: %d %s", path, resp.StatusCode, body))
	}
	return nil
}
