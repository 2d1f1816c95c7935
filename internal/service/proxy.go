package service

import (
	"context"

	"github.com/mir00r/haproxy-gen/internal/config"
	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/generator"
	"github.com/mir00r/haproxy-gen/internal/orchestrator"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// DefaultProxyName is the workload name of the proxy tier. Replica
// containers are named "<name>-<index>".
const DefaultProxyName = "haproxy"

// Builder assembles and deploys proxy tiers from routing specs. It is the
// public entry point of the module; everything below it is a pure text
// transform plus delegated orchestration side effects.
type Builder struct {
	settings  *config.Settings
	generator *generator.Generator
	deployer  orchestrator.Deployer
	logger    *logger.Logger

	proxyName string
	balance   string
}

// NewBuilder creates a Builder with the default proxy name and the balance
// algorithm from settings.
func NewBuilder(settings *config.Settings, deployer orchestrator.Deployer, log *logger.Logger) *Builder {
	return &Builder{
		settings:  settings,
		generator: generator.New(settings.Proxy, log),
		deployer:  deployer,
		logger:    log,
		proxyName: DefaultProxyName,
		balance:   settings.Proxy.Balance,
	}
}

// WithBalance overrides the balance algorithm for subsequent deployments.
// The token is forwarded verbatim into the generated configuration.
func (b *Builder) WithBalance(balance string) *Builder {
	b.balance = balance
	return b
}

// WithProxyName overrides the proxy workload name.
func (b *Builder) WithProxyName(name string) *Builder {
	b.proxyName = name
	return b
}

// ExposedPort returns the externally-listening frontend port.
func (b *Builder) ExposedPort() int {
	return b.settings.Proxy.ExposedPort
}

// SingleServiceLoadBalancer deploys a proxy tier that distributes all
// traffic across one service's replicas with cookie-based session affinity.
func (b *Builder) SingleServiceLoadBalancer(ctx context.Context, replicas int, svc domain.Service) (*domain.ProxyService, error) {
	return b.deploy(ctx, replicas, domain.NewSingleTarget(svc))
}

// WithHostRouting deploys a proxy tier that routes by the inbound Host
// header across the given domain routes. Route order is preserved in the
// generated configuration; duplicate domains are rejected.
func (b *Builder) WithHostRouting(ctx context.Context, replicas int, routes []domain.DomainRoute) (*domain.ProxyService, error) {
	return b.deploy(ctx, replicas, domain.NewMultiTarget(routes))
}

// Generate synthesizes the configuration document without deploying
// anything. Used by dry runs and the admin endpoint.
func (b *Builder) Generate(spec domain.RoutingSpec) (domain.ConfigDocument, error) {
	return b.generator.Assemble(spec, b.balance)
}

func (b *Builder) deploy(ctx context.Context, replicas int, spec domain.RoutingSpec) (*domain.ProxyService, error) {
	doc, err := b.generator.Assemble(spec, b.balance)
	if err != nil {
		return nil, err
	}

	log := b.logger.ServiceLogger(b.proxyName)
	log.WithField("replicas", replicas).Info("Deploying proxy tier")

	ids, err := b.deployer.DeployReplicated(ctx, b.proxyName, replicas, doc)
	if err != nil {
		return nil, err
	}

	for _, svc := range spec.Services() {
		if err := b.deployer.GrantAccess(ctx, b.proxyName, svc.Name(), b.settings.Proxy.InternalPort); err != nil {
			return nil, err
		}
	}

	return &domain.ProxyService{
		Name:       b.proxyName,
		ReplicaIDs: ids,
		Document:   doc,
	}, nil
}
