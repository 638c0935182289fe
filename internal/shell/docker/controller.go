package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/artpar/ngreen/internal/core/compose"
	"github.com/artpar/ngreen/internal/core/deployment"
)

// stopTimeout bounds a graceful container stop during teardown.
const stopTimeout = 10 * time.Second

// =============================================================================
// Controller - ServiceController over the Engine API
// =============================================================================

// ControllerOptions configures how the slot project is rendered.
type ControllerOptions struct {
	Template       string            // Compose template contents
	WorkingDir     string            // Relative bind mounts resolve here
	IngressService string            // "" = infer
	Environment    map[string]string // Extra interpolation variables
}

// Controller brings slot projects up and down with the Docker Engine API.
// Every resource it creates carries the slot's project label, which is all
// BringDown needs to find them again.
type Controller struct {
	docker Client
	opts   ControllerOptions
	logger *slog.Logger
}

// NewController creates a controller for image-only templates.
func NewController(docker Client, opts ControllerOptions, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		docker: docker,
		opts:   opts,
		logger: logger.With("component", "docker_controller"),
	}
}

// =============================================================================
// Bring Up
// =============================================================================

// BringUp renders the template for the slot and starts its containers in
// dependency order. On failure the containers created so far are removed;
// the network and volumes are left for BringDown.
func (c *Controller) BringUp(ctx context.Context, handle string, port int, version string) error {
	rendered, err := compose.RenderSlot(c.opts.Template, compose.RenderOptions{
		Handle:         handle,
		Port:           port,
		Version:        version,
		IngressService: c.opts.IngressService,
		WorkingDir:     c.opts.WorkingDir,
		Environment:    c.opts.Environment,
	})
	if err != nil {
		return fmt.Errorf("render compose template: %w", err)
	}
	for _, svc := range rendered.Services {
		if svc.Image == "" {
			return NewDockerError("BringUp", "service", svc.Name, "no image", ErrBuildUnsupported)
		}
	}

	c.logger.Info("bringing up slot",
		"project", handle,
		"port", port,
		"version", version,
		"services", len(rendered.Services),
	)

	labels := c.projectLabels(handle, port, version)

	// 1. Network
	networkName := deployment.NetworkName(handle)
	if _, err := c.docker.CreateNetwork(ctx, NetworkSpec{Name: networkName, Labels: labels}); err != nil && !errors.Is(err, ErrNetworkAlreadyExists) {
		return fmt.Errorf("failed to create network: %w", err)
	}

	// 2. Named volumes
	for _, vol := range rendered.Volumes {
		if vol.External {
			continue
		}
		volumeName := deployment.VolumeName(handle, vol.Name)
		if _, err := c.docker.CreateVolume(ctx, VolumeSpec{Name: volumeName, Labels: labels}); err != nil {
			return fmt.Errorf("failed to create volume %s: %w", vol.Name, err)
		}
	}

	// 3. Images
	for _, svc := range rendered.Services {
		exists, err := c.docker.ImageExists(ctx, svc.Image)
		if err != nil {
			c.logger.Debug("image lookup failed, pulling", "image", svc.Image, "error", err)
		}
		if exists {
			continue
		}
		c.logger.Info("pulling image", "image", svc.Image)
		if err := c.docker.PullImage(ctx, svc.Image, PullOptions{}); err != nil {
			return fmt.Errorf("failed to pull image %s: %w", svc.Image, err)
		}
	}

	// 4. Containers
	created := make([]string, 0, len(rendered.Services))
	for _, svc := range deployment.StartOrder(rendered.Services) {
		plan := deployment.BuildContainerPlan(deployment.BuildContainerPlanParams{
			Handle:      handle,
			Service:     svc,
			NetworkName: networkName,
		})
		spec := c.specFromPlan(plan)

		id, err := c.docker.CreateContainer(ctx, spec)
		if err != nil {
			c.removeContainers(ctx, created)
			return fmt.Errorf("failed to create container for %s: %w", svc.Name, err)
		}
		created = append(created, id)

		if err := c.docker.StartContainer(ctx, id); err != nil {
			c.removeContainers(ctx, created)
			return fmt.Errorf("failed to start container for %s: %w", svc.Name, err)
		}
		c.logger.Debug("started container", "project", handle, "service", svc.Name, "container_id", id)
	}

	c.logger.Info("slot is up", "project", handle, "port", port, "containers", len(created))
	return nil
}

func (c *Controller) projectLabels(handle string, port int, version string) map[string]string {
	return map[string]string{
		compose.LabelManaged: "true",
		compose.LabelProject: handle,
		compose.LabelVersion: version,
		compose.LabelPort:    strconv.Itoa(port),
	}
}

// specFromPlan converts a container plan into an Engine API spec.
func (c *Controller) specFromPlan(plan deployment.ContainerPlan) ContainerSpec {
	spec := ContainerSpec{
		Name:       plan.Name,
		Image:      plan.Image,
		Command:    plan.Command,
		Entrypoint: plan.Entrypoint,
		Env:        plan.Env,
		Labels:     plan.Labels,
		Networks:   []string{plan.Network},
		NetworkAliases: map[string][]string{
			plan.Network: {plan.Alias},
		},
		RestartPolicy: RestartPolicy{
			Name:              plan.RestartPolicy.Name,
			MaximumRetryCount: plan.RestartPolicy.MaximumRetryCount,
		},
	}

	for _, p := range plan.Ports {
		spec.Ports = append(spec.Ports, PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range plan.Volumes {
		mountType := MountType(v.Type)
		source := v.Source
		if mountType == MountTypeBind && !filepath.IsAbs(source) && c.opts.WorkingDir != "" {
			source = filepath.Join(c.opts.WorkingDir, source)
		}
		spec.Volumes = append(spec.Volumes, VolumeMount{
			Type:     mountType,
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	if plan.HealthCheck != nil {
		spec.HealthCheck = &HealthCheck{
			Test:        plan.HealthCheck.Test,
			Interval:    plan.HealthCheck.Interval,
			Timeout:     plan.HealthCheck.Timeout,
			Retries:     plan.HealthCheck.Retries,
			StartPeriod: plan.HealthCheck.StartPeriod,
		}
	}

	return spec
}

// removeContainers force-removes containers created by a failed BringUp.
func (c *Controller) removeContainers(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := c.docker.RemoveContainer(ctx, id, RemoveOptions{Force: true}); err != nil && !isNotFound(err) {
			c.logger.Warn("failed to remove container", "container_id", id, "error", err)
		}
	}
}

// =============================================================================
// Bring Down
// =============================================================================

// BringDown removes every container, network and volume labelled with the
// project handle. A project with nothing left to remove is success.
func (c *Controller) BringDown(ctx context.Context, handle string) error {
	selector := ListOptions{
		All:    true,
		Labels: map[string]string{compose.LabelProject: handle},
	}

	c.logger.Info("bringing down slot", "project", handle)

	var errs []error

	containers, err := c.docker.ListContainers(ctx, selector)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	for _, ctr := range c.stopOrder(handle, containers) {
		timeout := stopTimeout
		if err := c.docker.StopContainer(ctx, ctr.ID, &timeout); err != nil && !isNotFound(err) && !errors.Is(err, ErrContainerNotRunning) {
			c.logger.Warn("failed to stop container", "container", ctr.Name, "error", err)
		}
		if err := c.docker.RemoveContainer(ctx, ctr.ID, RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}

	networks, err := c.docker.ListNetworks(ctx, selector)
	if err != nil {
		errs = append(errs, err)
	}
	for _, n := range networks {
		if err := c.docker.RemoveNetwork(ctx, n.ID); err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}

	volumes, err := c.docker.ListVolumes(ctx, selector)
	if err != nil {
		errs = append(errs, err)
	}
	for _, name := range volumes {
		if err := c.docker.RemoveVolume(ctx, name, true); err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("bring down %s: %w", handle, errors.Join(errs...))
	}
	c.logger.Info("slot is down", "project", handle, "containers", len(containers))
	return nil
}

// stopOrder sorts a slot's containers so dependents stop before the services
// they depend on. The graph comes from rendering the template again with the
// port and version the containers are labelled with. Containers of services
// the template no longer defines stop last, in list order.
func (c *Controller) stopOrder(handle string, containers []ContainerInfo) []ContainerInfo {
	if len(containers) < 2 {
		return containers
	}
	labels := containers[0].Labels
	port, err := strconv.Atoi(labels[compose.LabelPort])
	if err != nil {
		return containers
	}
	rendered, err := compose.RenderSlot(c.opts.Template, compose.RenderOptions{
		Handle:         handle,
		Port:           port,
		Version:        labels[compose.LabelVersion],
		IngressService: c.opts.IngressService,
		WorkingDir:     c.opts.WorkingDir,
		Environment:    c.opts.Environment,
	})
	if err != nil {
		c.logger.Debug("cannot order teardown, stopping in list order", "project", handle, "error", err)
		return containers
	}

	byService := make(map[string][]ContainerInfo, len(containers))
	for _, ctr := range containers {
		name := ctr.Labels[compose.LabelService]
		byService[name] = append(byService[name], ctr)
	}
	ordered := make([]ContainerInfo, 0, len(containers))
	for _, svc := range deployment.StopOrder(rendered.Services) {
		ordered = append(ordered, byService[svc.Name]...)
		delete(byService, svc.Name)
	}
	for _, ctr := range containers {
		if _, left := byService[ctr.Labels[compose.LabelService]]; left {
			ordered = append(ordered, ctr)
		}
	}
	return ordered
}
