package orchestrator

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/mir00r/haproxy-gen/internal/config"
	"github.com/mir00r/haproxy-gen/internal/domain"
	"github.com/mir00r/haproxy-gen/internal/errors"
	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// ServiceLabel marks containers managed by this module and carries the
// logical service name. Endpoint snapshots and access grants select
// containers by this label.
const ServiceLabel = "com.mir00r.haproxy-gen.service"

// Deployer is the orchestration capability the service assembly needs:
// deploy a replicated workload with files materialized inside each replica,
// and grant network reachability between workloads.
type Deployer interface {
	// DeployReplicated creates and starts replicas of the proxy workload,
	// materializing the document files at their declared paths before start.
	// Replica container names follow "<name>-<index>".
	DeployReplicated(ctx context.Context, name string, replicas int, files domain.ConfigDocument) ([]string, error)
	// GrantAccess makes the named backing service reachable from the proxy
	// workload on the given port.
	GrantAccess(ctx context.Context, proxyName, serviceName string, port int) error
}

// DockerDeployer implements Deployer against the local docker daemon.
// Reachability grants are realized by attaching both workloads to one
// bridge network; docker's embedded DNS then resolves replica names, which
// is what the generated server lines rely on.
type DockerDeployer struct {
	cli      *client.Client
	settings *config.Settings
	logger   *logger.Logger
}

// NewDockerDeployer creates a deployer bound to the docker daemon from the
// environment.
func NewDockerDeployer(settings *config.Settings, log *logger.Logger) (*DockerDeployer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client init: %w", err)
	}
	return &DockerDeployer{
		cli:      cli,
		settings: settings,
		logger:   log.OrchestratorLogger(),
	}, nil
}

// Close releases the docker client.
func (d *DockerDeployer) Close() error {
	return d.cli.Close()
}

// Client exposes the underlying docker client for docker-backed services.
func (d *DockerDeployer) Client() *client.Client {
	return d.cli
}

// DeployReplicated deploys the proxy tier. Each replica gets the same
// document; only the exposed frontend port is published to the host.
func (d *DockerDeployer) DeployReplicated(ctx context.Context, name string, replicas int, files domain.ConfigDocument) ([]string, error) {
	if err := d.ensureImage(ctx, d.settings.Proxy.Image); err != nil {
		return nil, errors.NewDeployError(name, err)
	}
	if err := d.ensureNetwork(ctx); err != nil {
		return nil, errors.NewDeployError(name, err)
	}

	portKey := nat.Port(fmt.Sprintf("%d/tcp", d.settings.Proxy.ExposedPort))
	exposed := nat.PortSet{portKey: struct{}{}}
	bindings := nat.PortMap{portKey: []nat.PortBinding{
		{HostIP: "0.0.0.0", HostPort: ""},
	}}

	ids := make([]string, 0, replicas)
	for i := 0; i < replicas; i++ {
		containerName := fmt.Sprintf("%s-%d", name, i)

		resp, err := d.cli.ContainerCreate(
			ctx,
			&container.Config{
				Image:        d.settings.Proxy.Image,
				Cmd:          d.settings.Command(),
				ExposedPorts: exposed,
				Labels:       map[string]string{ServiceLabel: name},
			},
			&container.HostConfig{
				PortBindings: bindings,
			},
			&network.NetworkingConfig{
				EndpointsConfig: map[string]*network.EndpointSettings{
					d.settings.Proxy.Network: {},
				},
			},
			nil,
			containerName,
		)
		if err != nil {
			return ids, errors.NewDeployError(name, fmt.Errorf("container create %s: %w", containerName, err))
		}

		if err := d.copyFiles(ctx, resp.ID, files); err != nil {
			return ids, errors.NewDeployError(name, fmt.Errorf("materialize files in %s: %w", containerName, err))
		}

		if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			return ids, errors.NewDeployError(name, fmt.Errorf("container start %s: %w", containerName, err))
		}

		d.logger.WithField("container", containerName).Info("Started proxy replica")
		ids = append(ids, resp.ID)
	}

	return ids, nil
}

// GrantAccess attaches the backing service's containers to the proxy
// network. The port is informational under docker networking; any port is
// reachable once the workloads share a network.
func (d *DockerDeployer) GrantAccess(ctx context.Context, proxyName, serviceName string, port int) error {
	listOpts := container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", ServiceLabel+"="+serviceName),
		),
	}
	containers, err := d.cli.ContainerList(ctx, listOpts)
	if err != nil {
		return errors.NewAccessGrantError(proxyName, serviceName, err)
	}

	for _, c := range containers {
		err := d.cli.NetworkConnect(ctx, d.settings.Proxy.Network, c.ID, &network.EndpointSettings{})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return errors.NewAccessGrantError(proxyName, serviceName, err)
		}
	}

	d.logger.WithFields(map[string]interface{}{
		"proxy":   proxyName,
		"service": serviceName,
		"port":    port,
	}).Info("Granted proxy access to backing service")
	return nil
}

// ensureImage pulls the proxy image if it is not present locally.
func (d *DockerDeployer) ensureImage(ctx context.Context, ref string) error {
	imgs, err := d.cli.ImageList(ctx, image.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return fmt.Errorf("image list: %w", err)
	}
	if len(imgs) > 0 {
		return nil
	}

	out, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull %s: %w", ref, err)
	}
	defer out.Close()
	_, err = io.Copy(io.Discard, out)
	return err
}

// ensureNetwork creates the shared bridge network if it does not exist.
func (d *DockerDeployer) ensureNetwork(ctx context.Context) error {
	name := d.settings.Proxy.Network
	networks, err := d.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("network list: %w", err)
	}
	if len(networks) > 0 {
		return nil
	}

	_, err = d.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		return fmt.Errorf("network create %s: %w", name, err)
	}
	d.logger.WithField("network", name).Info("Created shared proxy network")
	return nil
}

// copyFiles materializes the document inside a container via a tar stream
// rooted at /.
func (d *DockerDeployer) copyFiles(ctx context.Context, containerID string, files domain.ConfigDocument) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for path, content := range files {
		hdr := &tar.Header{
			Name: strings.TrimPrefix(path, "/"),
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", path, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("tar write %s: %w", path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("tar close: %w", err)
	}

	return d.cli.CopyToContainer(ctx, containerID, "/", &buf, container.CopyToContainerOptions{})
}
