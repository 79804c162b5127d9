// Command labuhd is the control plane binary: it loads configuration,
// builds every adapter (store, runtime, proxy, DNS), wires the four core
// usecases, starts the two automation loops as background goroutines, and
// serves the REST API until an OS termination signal arrives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sasta-kro/labuh-go/automation"
	"github.com/sasta-kro/labuh-go/config"
	"github.com/sasta-kro/labuh-go/dns"
	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/handlers"
	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/provisioner"
	"github.com/sasta-kro/labuh-go/proxy"
	"github.com/sasta-kro/labuh-go/runtime"
	"github.com/sasta-kro/labuh-go/stack"
	"github.com/sasta-kro/labuh-go/store"
)

func main() {
	appConfig := config.LoadAppConfig()
	logger := appConfig.NewLogger()

	logger.Info("labuh control plane starting",
		"port", appConfig.Port,
		"db_path", appConfig.DBPath,
		"log_format", appConfig.LogFormat,
	)

	db, err := store.Open(appConfig.DBPath, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	dockerRuntime, err := runtime.NewDocker(logger)
	if err != nil {
		log.Fatalf("failed to connect to docker daemon: %v", err)
	}
	defer dockerRuntime.Close()

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBootstrap()

	if err := dockerRuntime.EnsureNetwork(bootstrapCtx, appConfig.OverlayNetwork); err != nil {
		log.Fatalf("failed to ensure overlay network: %v", err)
	}

	proxyClient := proxy.NewClient(appConfig.ProxyAdminURL, appConfig.OverlayNetwork, appConfig.CaddyImage, appConfig.CaddyConfigHostPath, dockerRuntime, logger)
	if err := proxyClient.Bootstrap(bootstrapCtx); err != nil {
		log.Fatalf("failed to bootstrap proxy: %v", err)
	}

	engine := stack.NewEngine(db, dockerRuntime, appConfig.OverlayNetwork, logger)
	domainProvisioner := provisioner.NewProvisioner(db, proxyClient, dnsProviderResolver(db), appConfig.PublicIP, logger)

	if err := domainProvisioner.SyncAllRoutes(bootstrapCtx); err != nil {
		logger.Error("initial route sync failed, continuing", "error", err)
	}

	scheduler := automation.NewScheduler(db, engine, logger)
	metricsCollector := automation.NewMetricsCollector(db, dockerRuntime, logger)

	automationCtx, cancelAutomation := context.WithCancel(context.Background())
	defer cancelAutomation()
	go scheduler.Run(automationCtx)
	go metricsCollector.Run(automationCtx)

	router := handlers.CreateAndSetupRouter(handlers.RouterDependencies{
		Logger:        logger,
		Store:         db,
		Engine:        engine,
		Provisioner:   domainProvisioner,
		AllowedOrigin: appConfig.AllowedOrigin,
	})

	server := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownChannel := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownChannel <- err
		}
		close(shutdownChannel)
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("startup complete, server ready to serve", "port", appConfig.Port)

	select {
	case sig := <-signalChannel:
		logger.Info("shutdown signal received", "signal", sig)
	case err := <-shutdownChannel:
		if err != nil {
			log.Fatalf("http server failed: %v", err)
		}
	}

	cancelAutomation()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("server shut down cleanly")
	}
}

// dnsConfigStore is the persistence surface dnsProviderResolver reads
// from, satisfied by *store.Store.
type dnsConfigStore interface {
	GetDnsConfig(teamID string, provider models.DomainProvider) (*models.DnsConfig, error)
}

// dnsProviderResolver builds a provisioner.ProviderResolver backed by
// per-team DNS provider configuration rows: each row's opaque Config blob
// is JSON holding the fields that provider's constructor needs.
func dnsProviderResolver(cfgStore dnsConfigStore) provisioner.ProviderResolver {
	return func(teamID string, provider models.DomainProvider) (dns.Provider, error) {
		switch provider {
		case models.ProviderCustom:
			return nil, nil
		case models.ProviderCloudflare:
			cfg, err := cfgStore.GetDnsConfig(teamID, models.ProviderCloudflare)
			if err != nil {
				return nil, err
			}
			var parsed struct {
				APIToken string `json:"api_token"`
				ZoneID   string `json:"zone_id"`
			}
			if err := json.Unmarshal([]byte(cfg.Config), &parsed); err != nil {
				return nil, errs.Wrap(errs.Validation, "parse cloudflare dns config", err)
			}
			return dns.NewCloudflare(parsed.APIToken, parsed.ZoneID), nil
		case models.ProviderCPanel:
			return dns.CPanel{}, nil
		default:
			return nil, errs.New(errs.Validation, fmt.Sprintf("unknown dns provider %q", provider))
		}
	}
}
