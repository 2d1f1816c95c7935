package compose

import (
	"fmt"
	"path/filepath"

	composeLoader "github.com/compose-spec/compose-go/loader"
	composeTypes "github.com/compose-spec/compose-go/types"
	"github.com/docker/docker/client"

	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/orchestrator"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// LoadServices reads a docker-compose file and returns one docker-backed
// Service per compose service, in file order. The compose project is assumed
// to already be running; endpoints come from its labeled containers.
func LoadServices(path string, cli *client.Client, log *logger.Logger) ([]domain.Service, error) {
	project, err := loadProject(path)
	if err != nil {
		return nil, err
	}

	services := make([]domain.Service, 0, len(project.Services))
	for _, svc := range project.Services {
		services = append(services, orchestrator.NewComposeService(cli, svc.Name, log))
	}
	return services, nil
}

// loadProject parses the compose file at path.
func loadProject(path string) (*composeTypes.Project, error) {
	configDetails := composeTypes.ConfigDetails{
		ConfigFiles: []composeTypes.ConfigFile{
			{Filename: path},
		},
		WorkingDir: filepath.Dir(path),
	}

	project, err := composeLoader.Load(configDetails)
	if err != nil {
		return nil, fmt.Errorf("load compose project %s: %w", path, err)
	}
	return project, nil
}
