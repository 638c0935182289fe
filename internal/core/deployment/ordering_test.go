package deployment

import (
	"testing"

	"github.com/artpar/ngreen/internal/core/compose"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// StartOrder Tests
// =============================================================================

func serviceNamesOf(services []compose.Service) []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return names
}

func TestStartOrder_Empty(t *testing.T) {
	assert.Empty(t, StartOrder(nil))
}

func TestStartOrder_NoDependenciesKeepsInputOrder(t *testing.T) {
	services := []compose.Service{{Name: "api"}, {Name: "db"}, {Name: "web"}}
	assert.Equal(t, []string{"api", "db", "web"}, serviceNamesOf(StartOrder(services)))
}

func TestStartOrder_LinearChain(t *testing.T) {
	services := []compose.Service{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"c"}},
		{Name: "c", DependsOn: []string{"d"}},
		{Name: "d"},
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, serviceNamesOf(StartOrder(services)))
}

func TestStartOrder_Diamond(t *testing.T) {
	//       web
	//      /   \
	//    api   cache
	//      \   /
	//       db
	services := []compose.Service{
		{Name: "api", DependsOn: []string{"db"}},
		{Name: "cache", DependsOn: []string{"db"}},
		{Name: "db"},
		{Name: "web", DependsOn: []string{"api", "cache"}},
	}
	assert.Equal(t, []string{"db", "api", "cache", "web"}, serviceNamesOf(StartOrder(services)))
}

func TestStartOrder_CycleFallback(t *testing.T) {
	services := []compose.Service{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c"},
	}
	assert.Equal(t, []string{"c", "a", "b"}, serviceNamesOf(StartOrder(services)))
}

func TestStartOrder_IgnoresUnknownDependency(t *testing.T) {
	services := []compose.Service{{Name: "web", DependsOn: []string{"api"}}}
	assert.Equal(t, []string{"web"}, serviceNamesOf(StartOrder(services)))
}

func TestStartOrder_PreservesServiceData(t *testing.T) {
	services := []compose.Service{
		{Name: "web", Image: "nginx:latest", DependsOn: []string{"api"}, Environment: map[string]string{"PORT": "80"}},
		{Name: "api", Image: "myapp:1.0"},
	}
	result := StartOrder(services)

	assert.Equal(t, "web", result[1].Name)
	assert.Equal(t, "nginx:latest", result[1].Image)
	assert.Equal(t, "80", result[1].Environment["PORT"])
}

func TestStopOrder_ReversesStartOrder(t *testing.T) {
	services := []compose.Service{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "api", DependsOn: []string{"db"}},
		{Name: "db"},
	}
	assert.Equal(t, []string{"web", "api", "db"}, serviceNamesOf(StopOrder(services)))
}
