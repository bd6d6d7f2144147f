package runtime

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
)

// Labels attached to every container slipway starts. They scope the
// runtime namespace so concurrent deploys for different environments never
// collide.
const (
	LabelProduct     = "slipway.product"
	LabelEnvironment = "slipway.environment"
	LabelRelease     = "slipway.release"
)

// HealthState is the runtime's own verdict for a container.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthNone      HealthState = "none"
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// DialFunc opens a stream to the runtime socket; in production it tunnels
// through the workload host's SSH connection.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Client drives the workload host's container runtime with typed options
// instead of templated command strings.
type Client struct {
	docker *client.Client
}

// NewClient builds a runtime client whose transport dials through dial.
func NewClient(dial DialFunc) (*Client, error) {
	docker, err := client.NewClientWithOpts(
		client.WithHost("http://docker.tunnel"),
		client.WithDialContext(func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dial(ctx)
		}),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runtime client: %w", err)
	}
	return &Client{docker: docker}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Pull fetches an image, passing registry auth per-request.
func (c *Client) Pull(ctx context.Context, imageURI, authHeader string) error {
	rc, err := c.docker.ImagePull(ctx, imageURI, types.ImagePullOptions{
		RegistryAuth: authHeader,
	})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", imageURI, err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pulling %s: %w", imageURI, err)
	}
	log.Info().Str("image", imageURI).Msg("pulled image")
	return nil
}

// StartOptions are the typed inputs for starting one release instance.
type StartOptions struct {
	Name         string
	Image        string
	Env          []string
	InternalPort int
	Product      string
	Environment  string
	ReleaseID    string
}

// Start creates and starts a container with a host-assigned ephemeral port
// bound to the internal port, and returns the container ID.
func (c *Client) Start(ctx context.Context, opts StartOptions) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(opts.InternalPort))
	if err != nil {
		return "", err
	}

	created, err := c.docker.ContainerCreate(ctx,
		&container.Config{
			Image: opts.Image,
			Env:   opts.Env,
			ExposedPorts: nat.PortSet{
				port: struct{}{},
			},
			Labels: map[string]string{
				LabelProduct:     opts.Product,
				LabelEnvironment: opts.Environment,
				LabelRelease:     opts.ReleaseID,
			},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				// Empty HostPort lets the daemon assign an ephemeral port,
				// so releases never contend for a fixed one.
				port: []nat.PortBinding{{HostPort: ""}},
			},
			RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
		},
		nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("creating container %s: %w", opts.Name, err)
	}

	if err := c.docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("starting container %s: %w", opts.Name, err)
	}

	log.Info().Str("container", opts.Name).Msg("started container")
	return created.ID, nil
}

// BoundPort reads back the host port the daemon assigned for the internal
// port.
func (c *Client) BoundPort(ctx context.Context, containerID string, internalPort int) (int, error) {
	inspect, err := c.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return 0, fmt.Errorf("inspecting %s: %w", containerID, err)
	}

	port, err := nat.NewPort("tcp", strconv.Itoa(internalPort))
	if err != nil {
		return 0, err
	}
	bindings := inspect.NetworkSettings.Ports[port]
	if len(bindings) == 0 {
		return 0, fmt.Errorf("container %s has no binding for port %d", containerID, internalPort)
	}
	bound, err := strconv.Atoi(bindings[0].HostPort)
	if err != nil {
		return 0, fmt.Errorf("container %s: bad host port %q", containerID, bindings[0].HostPort)
	}
	return bound, nil
}

// Health returns the runtime's health verdict. HealthNone means the image
// configures no health check at all.
func (c *Client) Health(ctx context.Context, containerID string) (HealthState, error) {
	inspect, err := c.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspecting %s: %w", containerID, err)
	}
	if inspect.State == nil || inspect.State.Health == nil {
		return HealthNone, nil
	}
	switch inspect.State.Health.Status {
	case types.Starting:
		return HealthStarting, nil
	case types.Healthy:
		return HealthHealthy, nil
	default:
		return HealthUnhealthy, nil
	}
}

// StopWithTimeout gracefully stops a container, bounding the drain.
func (c *Client) StopWithTimeout(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	return c.docker.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds})
}

// Remove deletes a container.
func (c *Client) Remove(ctx context.Context, containerID string) error {
	return c.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// Instance is one running or stopped release container.
type Instance struct {
	ID        string
	Name      string
	ReleaseID string
	Created   time.Time
}

// ListEnvironment returns every container labeled for product+environment,
// newest first.
func (c *Client) ListEnvironment(ctx context.Context, product, environment string) ([]Instance, error) {
	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelProduct, product)),
			filters.Arg("label", fmt.Sprintf("%s=%s", LabelEnvironment, environment)),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("listing containers for %s/%s: %w", product, environment, err)
	}

	instances := make([]Instance, 0, len(containers))
	for _, ctr := range containers {
		name := ""
		if len(ctr.Names) > 0 {
			name = ctr.Names[0]
		}
		instances = append(instances, Instance{
			ID:        ctr.ID,
			Name:      name,
			ReleaseID: ctr.Labels[LabelRelease],
			Created:   time.Unix(ctr.Created, 0),
		})
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Created.After(instances[j].Created)
	})
	return instances, nil
}
