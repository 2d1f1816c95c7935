package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/mir00r/haproxy-gen/internal/compose"
	"github.com/mir00r/haproxy-gen/internal/config"
	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/handler"
	"github.com/mir00r/haproxy-gen/internal/middleware"
	"github.com/mir00r/haproxy-gen/internal/orchestrator"
	"github.com/mir00r/haproxy-gen/internal/repository"
	"github.com/mir00r/haproxy-gen/internal/service"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	var (
		configFile  = flag.String("config", "", "settings file (defaults to environment-based settings)")
		routingFile = flag.String("routing", "configs/routing.yaml", "routing spec file")
		composeFile = flag.String("compose", "", "docker-compose file describing the backing tier")
		dryRun      = flag.Bool("dry-run", false, "print the generated configuration and exit")
	)
	flag.Parse()

	settings, err := loadSettings(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Output: settings.Logging.Output,
		File:   settings.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	routing, err := config.LoadRoutingFile(*routingFile)
	if err != nil {
		log.Fatalf("Failed to load routing file: %v", err)
	}

	var deployer *orchestrator.DockerDeployer
	if !*dryRun || needsDocker(routing, *composeFile) {
		deployer, err = orchestrator.NewDockerDeployer(settings, log)
		if err != nil {
			log.Fatalf("Failed to create docker deployer: %v", err)
		}
		defer deployer.Close()
	}

	registry := repository.NewInMemoryServiceRegistry()
	if err := registerServices(registry, routing, *composeFile, deployer, log); err != nil {
		log.Fatalf("Failed to register services: %v", err)
	}

	spec, err := buildSpec(registry, routing)
	if err != nil {
		log.Fatalf("Failed to build routing spec: %v", err)
	}

	builder := service.NewBuilder(settings, deployer, log)
	if routing.Balance != "" {
		builder.WithBalance(routing.Balance)
	}

	if *dryRun {
		doc, err := builder.Generate(spec)
		if err != nil {
			log.Fatalf("Failed to generate configuration: %v", err)
		}
		for path, content := range doc {
			fmt.Printf("# %s\n%s", path, content)
		}
		return
	}

	ctx := context.Background()
	proxy, err := deployProxy(ctx, builder, spec, routing.Replicas)
	if err != nil {
		log.Fatalf("Failed to deploy proxy tier: %v", err)
	}
	log.WithField("replicas", len(proxy.ReplicaIDs)).Infof("Proxy tier %s deployed on port %d", proxy.Name, builder.ExposedPort())

	if settings.Admin.Enabled {
		runAdminServer(settings, builder, registry, spec, log)
	}
}

// loadSettings loads settings from a file when one is given, otherwise from
// the environment with defaults.
func loadSettings(configFile string) (*config.Settings, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	if envFile := os.Getenv("HAPROXY_GEN_CONFIG"); envFile != "" {
		return config.LoadFromFile(envFile)
	}
	return config.LoadFromEnv(), nil
}

// needsDocker reports whether the routing input references services without
// static endpoints, which must be resolved against the docker daemon.
func needsDocker(routing *config.RoutingFile, composeFile string) bool {
	if composeFile != "" {
		return true
	}
	for _, svc := range routing.Services {
		if len(svc.Endpoints) == 0 {
			return true
		}
	}
	return false
}

// registerServices populates the registry from the routing file and the
// optional compose file.
func registerServices(registry *repository.InMemoryServiceRegistry, routing *config.RoutingFile, composeFile string, deployer *orchestrator.DockerDeployer, log *logger.Logger) error {
	for _, spec := range routing.Services {
		var svc domain.Service
		if len(spec.Endpoints) > 0 {
			svc = repository.NewStaticService(spec.Name, spec.Endpoints)
		} else {
			svc = orchestrator.NewDockerService(deployer.Client(), spec.Name, log)
		}
		if err := registry.Register(svc); err != nil {
			return err
		}
	}

	if composeFile == "" {
		return nil
	}

	services, err := compose.LoadServices(composeFile, deployer.Client(), log)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := registry.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

// buildSpec resolves the routing file into a typed routing spec.
func buildSpec(registry *repository.InMemoryServiceRegistry, routing *config.RoutingFile) (domain.RoutingSpec, error) {
	if len(routing.Routes) == 0 {
		svc, err := registry.Get(routing.Services[0].Name)
		if err != nil {
			return domain.RoutingSpec{}, err
		}
		return domain.NewSingleTarget(svc), nil
	}

	routes := make([]domain.DomainRoute, 0, len(routing.Routes))
	for _, r := range routing.Routes {
		svc, err := registry.Get(r.Service)
		if err != nil {
			return domain.RoutingSpec{}, err
		}
		routes = append(routes, domain.DomainRoute{Domain: r.Domain, Service: svc})
	}
	return domain.NewMultiTarget(routes), nil
}

// deployProxy deploys the proxy tier according to the spec variant.
func deployProxy(ctx context.Context, builder *service.Builder, spec domain.RoutingSpec, replicas int) (*domain.ProxyService, error) {
	if spec.IsSingle() {
		return builder.SingleServiceLoadBalancer(ctx, replicas, spec.Single())
	}
	return builder.WithHostRouting(ctx, replicas, spec.Routes())
}

// runAdminServer serves the admin API until SIGINT/SIGTERM, then shuts down
// gracefully.
func runAdminServer(settings *config.Settings, builder *service.Builder, registry *repository.InMemoryServiceRegistry, spec domain.RoutingSpec, log *logger.Logger) {
	router := mux.NewRouter()
	admin := handler.NewAdminHandler(builder, registry, spec, log)
	admin.RegisterRoutes(router)

	rateLimit := middleware.NewRateLimitMiddleware(settings.Admin.RequestsPerSec, settings.Admin.BurstSize, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.Admin.Port),
		Handler:      rateLimit.Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Admin API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Admin server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down admin server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Admin server shutdown failed: %v", err)
	}
}
