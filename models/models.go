// Package models defines the data structures shared across the control
// plane. It has no imports from other internal packages, making it the
// foundation of the dependency graph; every other package imports from
// here, never the reverse.
package models

import "time"

// StackStatus is the lifecycle state of a Stack. A named string type
// instead of a plain string so the compiler rejects a stray literal
// status value anywhere one of these constants should be used.
type StackStatus string

const (
	StackCreating  StackStatus = "creating"
	StackStopped   StackStatus = "stopped"
	StackRunning   StackStatus = "running"
	StackDeploying StackStatus = "deploying"
	StackError     StackStatus = "error"
)

// Stack is a named group of services defined by a single Compose
// manifest. Container names for every child container are
// "{stack.Name}-{service.Name}" — see compose.ContainerName.
type Stack struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	UserID         string      `json:"user_id" db:"user_id"`
	TeamID         string      `json:"team_id" db:"team_id"`
	ComposeContent string      `json:"compose_content" db:"compose_content"`
	Status         StackStatus `json:"status" db:"status"`
	WebhookToken   string      `json:"-" db:"webhook_token"`
	CronSchedule   *string     `json:"cron_schedule,omitempty" db:"cron_schedule"`
	GitURL         *string     `json:"git_url,omitempty" db:"git_url"`
	GitBranch      *string     `json:"git_branch,omitempty" db:"git_branch"`
	LastCommit     *string     `json:"last_commit,omitempty" db:"last_commit"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// StackHealth summarizes the live container state of a Stack's services.
type StackHealth struct {
	Status     string            `json:"status"`
	Total      int               `json:"total"`
	Running    int               `json:"running"`
	Stopped    int               `json:"stopped"`
	Unhealthy  int               `json:"unhealthy"`
	Containers []ContainerHealth `json:"containers"`
}

// ContainerHealth is one row of a StackHealth report.
type ContainerHealth struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	Status string `json:"status"`
}

// StackLogEntry is one line of aggregated per-container log output,
// returned by the stack's log-tail operation.
type StackLogEntry struct {
	Container string `json:"container"`
	Message   string `json:"message"`
}

// StackEnvVar is a per-(stack, container) environment variable override
// applied on top of the Compose manifest at deploy time. An empty
// ContainerName means "global for the stack"; container-specific entries
// override global ones during the merge (see compose env-merge rule).
type StackEnvVar struct {
	ID            string `json:"id" db:"id"`
	StackID       string `json:"stack_id" db:"stack_id"`
	ContainerName string `json:"container_name" db:"container_name"`
	Key           string `json:"key" db:"key"`
	Value         string `json:"value" db:"value"`
	IsSecret      bool   `json:"is_secret" db:"is_secret"`
}

// DomainProvider is the DNS backend used to provision a Domain's record.
type DomainProvider string

const (
	ProviderCustom     DomainProvider = "Custom"
	ProviderCloudflare DomainProvider = "Cloudflare"
	ProviderCPanel     DomainProvider = "CPanel"
)

// DomainType distinguishes a normal Caddy-routed domain from a tunneled one.
type DomainType string

const (
	DomainCaddy   DomainType = "Caddy"
	DomainTunnel  DomainType = "Tunnel"
)

// Domain binds an FQDN to one container:port upstream within a stack.
// Globally unique on Domain across all stacks.
type Domain struct {
	ID            string         `json:"id" db:"id"`
	StackID       string         `json:"stack_id" db:"stack_id"`
	ContainerName string         `json:"container_name" db:"container_name"`
	ContainerPort int            `json:"container_port" db:"container_port"`
	Domain        string         `json:"domain" db:"domain"`
	SSLEnabled    bool           `json:"ssl_enabled" db:"ssl_enabled"`
	Verified      bool           `json:"verified" db:"verified"`
	Provider      DomainProvider `json:"provider" db:"provider"`
	Type          DomainType     `json:"type" db:"type"`
	TunnelID      *string        `json:"tunnel_id,omitempty" db:"tunnel_id"`
	DNSRecordID   *string        `json:"dns_record_id,omitempty" db:"dns_record_id"`
	Proxied       bool           `json:"proxied" db:"proxied"`
	ShowBranding  bool           `json:"show_branding" db:"show_branding"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// RegistryCredential is a team-scoped image-pull secret, looked up by the
// registry host prefix extracted from an image reference (see
// registry.ExtractHost). Password is base64-encoded, not encrypted — see
// DESIGN.md's open-question resolution.
type RegistryCredential struct {
	ID       string `json:"id" db:"id"`
	TeamID   string `json:"team_id" db:"team_id"`
	Registry string `json:"registry" db:"registry"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
}

// DeploymentTrigger identifies what caused a DeploymentLog row.
type DeploymentTrigger string

const (
	TriggerWebhook   DeploymentTrigger = "webhook"
	TriggerManual    DeploymentTrigger = "manual"
	TriggerScheduled DeploymentTrigger = "scheduled"
)

// DeploymentStatus is the outcome state of a DeploymentLog row.
type DeploymentStatus string

const (
	DeploymentPending DeploymentStatus = "pending"
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentFailed  DeploymentStatus = "failed"
)

// DeploymentLog is an append-only per-stack redeploy history row.
type DeploymentLog struct {
	ID          string            `json:"id" db:"id"`
	StackID     string            `json:"stack_id" db:"stack_id"`
	TriggerType DeploymentTrigger `json:"trigger_type" db:"trigger_type"`
	Status      DeploymentStatus  `json:"status" db:"status"`
	Logs        string            `json:"logs" db:"logs"`
	StartedAt   time.Time         `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
}

// ResourceMetric is one per-container sample collected by the automation
// loop's metrics collector. Rows older than 30 days are pruned on every
// collection pass.
type ResourceMetric struct {
	ID            string    `json:"id" db:"id"`
	ContainerID   string    `json:"container_id" db:"container_id"`
	StackID       string    `json:"stack_id" db:"stack_id"`
	CPUPercent    float64   `json:"cpu_percent" db:"cpu_percent"`
	MemoryBytes   int64     `json:"memory_bytes" db:"memory_bytes"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// DnsConfig is the opaque provider configuration (API token, zone, etc.)
// stored per (team, provider). Unique on (TeamID, Provider).
type DnsConfig struct {
	ID       string         `json:"id" db:"id"`
	TeamID   string         `json:"team_id" db:"team_id"`
	Provider DomainProvider `json:"provider" db:"provider"`
	Config   string         `json:"-" db:"config"` // opaque JSON blob
}

// TeamRole is an RBAC role with a strict total order: Owner > Admin >
// Developer > Viewer.
type TeamRole string

const (
	RoleOwner     TeamRole = "Owner"
	RoleAdmin     TeamRole = "Admin"
	RoleDeveloper TeamRole = "Developer"
	RoleViewer    TeamRole = "Viewer"
)

// Priority returns the role's position in the strict order, higher is
// more privileged. Used to compare two roles without a lookup table at
// every call site.
func (r TeamRole) Priority() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleDeveloper:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Team is the RBAC-bearing grouping external to the four core subsystems;
// the core only ever consults a role via TeamMember.
type Team struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamMember is the (team, user) -> role tuple the core consults through
// the external RBAC collaborator interface.
type TeamMember struct {
	TeamID string   `json:"team_id" db:"team_id"`
	UserID string   `json:"user_id" db:"user_id"`
	Role   TeamRole `json:"role" db:"role"`
}
