package handlers

// router.go constructs the chi router, registers middleware, and wires
// every route to its handler. Adding a new endpoint means adding one
// line here, nothing else.

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sasta-kro/labuh-go/provisioner"
	"github.com/sasta-kro/labuh-go/stack"
	"github.com/sasta-kro/labuh-go/store"
)

// RouterDependencies groups every external dependency the router and its
// handlers need, so CreateAndSetupRouter's signature stays stable as more
// handlers are added.
type RouterDependencies struct {
	Logger        *slog.Logger
	Store         *store.Store
	Engine        *stack.Engine
	Provisioner   *provisioner.Provisioner
	AllowedOrigin string
}

// CreateAndSetupRouter constructs the chi multiplexer, attaches
// middleware, constructs all handlers, and registers all routes. It
// returns a plain http.Handler so main.go has no chi import or awareness.
func CreateAndSetupRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(CORSMiddleware(deps.AllowedOrigin))
	router.Use(AuthContext)

	healthHandler := NewHealthHandler(deps.Store, deps.Logger)
	stackHandler := NewStackHandler(deps.Engine, deps.Store, deps.Logger)
	domainHandler := NewDomainHandler(deps.Provisioner, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.Engine, deps.Store, deps.Logger)
	teamHandler := NewTeamHandler(deps.Store, deps.Store, deps.Logger)

	// /health and /ready are intentionally kept at the root rather than
	// under /api: load balancers, orchestrators, and uptime monitors
	// expect health checks at standard root paths.
	router.Get("/health", healthHandler.Health)
	router.Get("/ready", healthHandler.Ready)

	// webhook deploys authenticate via the token in the path, not the
	// X-User-Id/X-Team-Id headers, so they live outside the /api group
	// only in the sense that no header-based auth is expected on them.
	router.Post("/api/webhooks/{stackID}/{token}", webhookHandler.Deploy)

	router.Route("/api", func(api chi.Router) {
		api.Route("/stacks", func(stacks chi.Router) {
			stacks.Get("/", stackHandler.ListStacks)
			stacks.Post("/", stackHandler.CreateStack)

			stacks.Route("/{id}", func(s chi.Router) {
				s.Get("/", stackHandler.GetStack)
				s.Delete("/", stackHandler.RemoveStack)
				s.Post("/start", stackHandler.StartStack)
				s.Post("/stop", stackHandler.StopStack)
				s.Post("/redeploy", stackHandler.RedeployStack)
				s.Get("/health", stackHandler.GetStackHealth)
				s.Get("/logs", stackHandler.GetStackLogs)
				s.Put("/compose", stackHandler.UpdateStackCompose)
				s.Post("/webhook-token", stackHandler.RegenerateWebhookToken)
				s.Get("/env", stackHandler.ListEnvVars)
				s.Put("/env", stackHandler.SetEnvVar)
				s.Get("/deployments", stackHandler.ListDeploymentLogs)
				s.Get("/metrics", stackHandler.ListMetrics)
				s.Get("/domains", domainHandler.ListDomainsByStack)
			})
		})

		api.Route("/domains", func(domains chi.Router) {
			domains.Post("/", domainHandler.AddDomain)
			domains.Delete("/{domain}", domainHandler.RemoveDomain)
			domains.Post("/{domain}/verify", domainHandler.VerifyDomain)
		})

		api.Route("/teams/{teamID}", func(teams chi.Router) {
			teams.Get("/registry-credentials", teamHandler.ListRegistryCredentials)
			teams.Post("/registry-credentials", teamHandler.AddRegistryCredential)
			teams.Delete("/registry-credentials/{id}", teamHandler.DeleteRegistryCredential)
			teams.Put("/dns-config", teamHandler.UpsertDnsConfig)
		})
	})

	return router
}
