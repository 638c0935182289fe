package deployment

import (
	"time"

	"github.com/artpar/ngreen/internal/core/compose"
)

// =============================================================================
// Container Plan Building Functions
// =============================================================================

// BuildContainerPlan builds a ContainerPlan from a rendered compose service.
//
// This is a pure function. The service is expected to come out of
// compose.RenderSlot, so its ports are already bound to the slot and its
// labels already identify the slot project. Named volumes are scoped to the
// handle the same way Docker Compose scopes them, so a slot torn down by the
// SDK driver and one torn down by the compose CLI leave the same footprint.
//
// Example:
//
//	plan := BuildContainerPlan(BuildContainerPlanParams{
//	    Handle:      "shop-5001",
//	    Service:     compose.Service{Name: "web", Image: "nginx:latest"},
//	    NetworkName: NetworkName("shop-5001"),
//	})
//	// plan.Name == "shop-5001-web-1"
func BuildContainerPlan(params BuildContainerPlanParams) ContainerPlan {
	svc := params.Service

	plan := ContainerPlan{
		Name:       ContainerName(params.Handle, svc.Name),
		Image:      svc.Image,
		Command:    svc.Command,
		Entrypoint: svc.Entrypoint,
		Env:        make(map[string]string, len(svc.Environment)),
		Labels:     make(map[string]string, len(svc.Labels)),
		Network:    params.NetworkName,
		Alias:      svc.Name,
	}

	for k, v := range svc.Environment {
		plan.Env[k] = v
	}
	for k, v := range svc.Labels {
		plan.Labels[k] = v
	}

	for _, p := range svc.Ports {
		plan.Ports = append(plan.Ports, PortPlan{
			ContainerPort: int(p.Target),
			HostPort:      int(p.Published),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range svc.Volumes {
		source := v.Source
		if v.Type == compose.VolumeMountTypeVolume && source != "" {
			source = VolumeName(params.Handle, v.Source)
		}
		plan.Volumes = append(plan.Volumes, VolumePlan{
			Type:     v.Type,
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	if svc.HealthCheck != nil {
		plan.HealthCheck = &HealthCheckPlan{
			Test:        svc.HealthCheck.Test,
			Retries:     svc.HealthCheck.Retries,
			Interval:    parseDuration(svc.HealthCheck.Interval),
			Timeout:     parseDuration(svc.HealthCheck.Timeout),
			StartPeriod: parseDuration(svc.HealthCheck.StartPeriod),
		}
	}

	plan.RestartPolicy = mapRestartPolicy(svc.Restart)

	return plan
}

// parseDuration returns zero for empty or malformed durations.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// mapRestartPolicy maps compose restart policy to Docker restart policy name.
func mapRestartPolicy(policy compose.RestartPolicy) RestartPolicyPlan {
	switch policy {
	case compose.RestartAlways:
		return RestartPolicyPlan{Name: "always"}
	case compose.RestartOnFailure:
		return RestartPolicyPlan{Name: "on-failure"}
	case compose.RestartUnlessStopped:
		return RestartPolicyPlan{Name: "unless-stopped"}
	default:
		return RestartPolicyPlan{Name: "no"}
	}
}
