package deployment

import (
	"fmt"
	"strings"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ProjectHandle names the service project occupying one slot.
// Pattern: {projectName}-{port}
//
// Example:
//
//	ProjectHandle("nginx_workflow", 5001) // returns "nginx_workflow-5001"
func ProjectHandle(projectName string, port int) string {
	return fmt.Sprintf("%s-%d", projectName, port)
}

// NetworkName generates the network name for a slot project.
// Pattern: {handle}_default
func NetworkName(handle string) string {
	return fmt.Sprintf("%s_default", handle)
}

// VolumeName generates a volume name scoped to a slot project.
// Pattern: {handle}_{volumeName}
func VolumeName(handle, volumeName string) string {
	return fmt.Sprintf("%s_%s", handle, volumeName)
}

// ContainerName generates a container name for a service in a slot project.
// Pattern: {handle}-{serviceName}-1
func ContainerName(handle, serviceName string) string {
	return fmt.Sprintf("%s-%s-1", handle, serviceName)
}

// HealthURL builds the probe URL for a slot.
//
// Example:
//
//	HealthURL("localhost", 5000, "/api/message") // "http://localhost:5000/api/message"
func HealthURL(host string, port int, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}
