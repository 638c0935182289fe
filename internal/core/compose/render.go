package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Slot Rendering
// =============================================================================

// RenderSlot binds a compose template to one slot.
// This is a pure function - no I/O, no side effects.
//
// The template is interpolated with APP_VERSION and SLOT_PORT, the first port
// mapping of the ingress service is published on the slot port, and every
// service is labelled with the project handle, version and port so the slot's
// containers can be found again for teardown. Any other fixed host port would
// collide between slots and is rejected.
func RenderSlot(template string, opts RenderOptions) (*Rendered, error) {
	if strings.TrimSpace(template) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadTemplate(template, opts)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	ingress, err := selectIngress(project, opts.IngressService)
	if err != nil {
		return nil, err
	}

	names := serviceNames(project)
	for _, name := range names {
		svc := project.Services[name]
		if svc.Name == "" {
			svc.Name = name
		}
		if err := bindPorts(&svc, name == ingress, opts.Port); err != nil {
			return nil, err
		}
		if svc.Labels == nil {
			svc.Labels = types.Labels{}
		}
		svc.Labels[LabelManaged] = "true"
		svc.Labels[LabelProject] = opts.Handle
		svc.Labels[LabelVersion] = opts.Version
		svc.Labels[LabelPort] = strconv.Itoa(opts.Port)
		svc.Labels[LabelService] = name
		project.Services[name] = svc
	}

	out, err := project.MarshalYAML()
	if err != nil {
		return nil, NewParseError("", "failed to marshal rendered project: "+err.Error(), ErrInvalidYAML)
	}

	rendered := &Rendered{
		Handle:   opts.Handle,
		Ingress:  ingress,
		YAML:     out,
		Services: make([]Service, 0, len(names)),
	}
	for _, name := range names {
		rendered.Services = append(rendered.Services, convertService(project.Services[name]))
	}

	volumeNames := make([]string, 0, len(project.Volumes))
	for name := range project.Volumes {
		volumeNames = append(volumeNames, name)
	}
	sort.Strings(volumeNames)
	for _, name := range volumeNames {
		rendered.Volumes = append(rendered.Volumes, Volume{
			Name:     name,
			External: bool(project.Volumes[name].External),
		})
	}

	return rendered, nil
}

// loadTemplate loads a compose template using compose-go.
func loadTemplate(template string, opts RenderOptions) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(template), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	env := types.Mapping{}
	for k, v := range opts.Environment {
		env[k] = v
	}
	env[EnvVersion] = opts.Version
	env[EnvSlotPort] = strconv.Itoa(opts.Port)

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		WorkingDir: opts.WorkingDir,
		ConfigFiles: []types.ConfigFile{
			{
				Filename: "docker-compose.yml",
				Content:  []byte(template),
				Config:   dict,
			},
		},
		Environment: env,
	}, func(o *loader.Options) {
		o.SetProjectName(opts.Handle, true)
		o.SkipNormalization = true
		o.SkipExtends = true
		o.ResolvePaths = false
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}
	return project, nil
}

// selectIngress picks the service whose first port is bound to the slot.
func selectIngress(project *types.Project, named string) (string, error) {
	if named != "" {
		svc, ok := project.Services[named]
		if !ok {
			return "", NewParseError("services."+named, "ingress service not defined", ErrNoIngress)
		}
		if len(svc.Ports) == 0 {
			return "", NewParseError("services."+named+".ports", "ingress service has no ports", ErrNoIngress)
		}
		return named, nil
	}

	var candidates []string
	for _, name := range serviceNames(project) {
		if len(project.Services[name].Ports) > 0 {
			candidates = append(candidates, name)
		}
	}
	switch len(candidates) {
	case 0:
		return "", ErrNoIngress
	case 1:
		return candidates[0], nil
	default:
		return "", NewParseError("services", "candidates: "+strings.Join(candidates, ", "), ErrAmbiguousIngress)
	}
}

// bindPorts publishes the ingress port on the slot port and rejects any other
// fixed host port.
func bindPorts(svc *types.ServiceConfig, ingress bool, slotPort int) error {
	for i := range svc.Ports {
		field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
		if svc.Ports[i].Target == 0 {
			return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
		}
		if ingress && i == 0 {
			svc.Ports[i].Published = strconv.Itoa(slotPort)
			continue
		}
		if svc.Ports[i].Published != "" {
			return NewParseError(field, "fixed host port "+svc.Ports[i].Published+" would collide between slots", ErrServiceInvalidPort)
		}
	}
	return nil
}

func serviceNames(project *types.Project) []string {
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
