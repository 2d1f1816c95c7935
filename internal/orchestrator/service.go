package orchestrator

import (
	"context"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// ComposeServiceLabel is the label docker compose stamps on the containers
// of a compose service. Compose-managed backends are snapshotted by it.
const ComposeServiceLabel = "com.docker.compose.service"

// DockerService is a Service backed by the containers carrying this
// service's label. Endpoints are container names: on the shared bridge
// network docker's embedded DNS resolves them, and the generated server
// lines re-resolve through it as replicas come and go.
type DockerService struct {
	cli      *client.Client
	name     string
	labelKey string
	logger   *logger.Logger
}

// NewDockerService creates a docker-backed service view for the given name.
func NewDockerService(cli *client.Client, name string, log *logger.Logger) *DockerService {
	return &DockerService{
		cli:      cli,
		name:     name,
		labelKey: ServiceLabel,
		logger:   log.OrchestratorLogger(),
	}
}

// NewComposeService creates a service view over an existing docker compose
// service's containers.
func NewComposeService(cli *client.Client, name string, log *logger.Logger) *DockerService {
	return &DockerService{
		cli:      cli,
		name:     name,
		labelKey: ComposeServiceLabel,
		logger:   log.OrchestratorLogger(),
	}
}

// Name returns the service name.
func (s *DockerService) Name() string {
	return s.name
}

// Endpoints snapshots the names of the service's running containers, sorted
// for deterministic generation. A listing failure yields an empty snapshot;
// the generated backend then simply has no server lines until the next
// regeneration.
func (s *DockerService) Endpoints() []string {
	containers, err := s.cli.ContainerList(context.Background(), container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", s.labelKey+"="+s.name),
			filters.Arg("status", "running"),
		),
	})
	if err != nil {
		s.logger.WithError(err).WithField("service", s.name).Warn("Failed to snapshot service endpoints")
		return nil
	}

	endpoints := make([]string, 0, len(containers))
	for _, c := range containers {
		if len(c.Names) == 0 {
			continue
		}
		// Docker returns names prefixed with '/'.
		endpoints = append(endpoints, strings.TrimPrefix(c.Names[0], "/"))
	}
	sort.Strings(endpoints)
	return endpoints
}
