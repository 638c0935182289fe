package compose

// =============================================================================
// Labels and Environment
// =============================================================================

const (
	LabelManaged = "io.ngreen.managed"
	LabelProject = "io.ngreen.project"
	LabelVersion = "io.ngreen.version"
	LabelPort    = "io.ngreen.port"
	LabelService = "io.ngreen.service"

	// EnvVersion and EnvSlotPort are available to ${...} interpolation in
	// the template, e.g. "image: registry/app:${APP_VERSION}".
	EnvVersion  = "APP_VERSION"
	EnvSlotPort = "SLOT_PORT"
)

// =============================================================================
// Rendered - Main Output Type
// =============================================================================

// RenderOptions describes the slot a template is rendered for.
type RenderOptions struct {
	Handle         string            // Compose project name for the slot
	Port           int               // Slot host port
	Version        string            // Version being deployed
	IngressService string            // Service whose first port binds to Port; "" = infer
	WorkingDir     string            // Directory relative paths resolve against
	Environment    map[string]string // Extra interpolation variables
}

// Rendered is a template bound to one slot.
type Rendered struct {
	Handle   string    `json:"handle"`
	Ingress  string    `json:"ingress"`
	YAML     []byte    `json:"-"`
	Services []Service `json:"services"`
	Volumes  []Volume  `json:"volumes,omitempty"`
}

// Service returns the named service.
func (r *Rendered) Service(name string) (Service, bool) {
	for _, svc := range r.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition after rendering.
type Service struct {
	Name        string            `json:"name"`
	Image       string            `json:"image,omitempty"`
	Build       *BuildConfig      `json:"build,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Entrypoint  []string          `json:"entrypoint,omitempty"`
	Ports       []Port            `json:"ports,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Volumes     []VolumeMount     `json:"volumes,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Restart     RestartPolicy     `json:"restart,omitempty"`
	HealthCheck *HealthCheck      `json:"healthcheck,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// BuildConfig represents build configuration.
type BuildConfig struct {
	Context    string `json:"context"`
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published uint32 `json:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`   // Bind IP
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     VolumeMountType `json:"type"`
	Source   string          `json:"source"`
	Target   string          `json:"target"`
	ReadOnly bool            `json:"readonly"`
}

// VolumeMountType represents the type of volume mount.
type VolumeMountType string

const (
	VolumeMountTypeBind   VolumeMountType = "bind"
	VolumeMountTypeVolume VolumeMountType = "volume"
	VolumeMountTypeTmpfs  VolumeMountType = "tmpfs"
)

// RestartPolicy represents the restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// HealthCheck represents a container level health check.
type HealthCheck struct {
	Test        []string `json:"test"`
	Interval    string   `json:"interval,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
	Retries     int      `json:"retries,omitempty"`
	StartPeriod string   `json:"start_period,omitempty"`
}

// Volume represents a named volume definition.
type Volume struct {
	Name     string `json:"name"`
	External bool   `json:"external"`
}
