package deployment

import (
	"github.com/artpar/ngreen/internal/core/compose"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// StartOrder sorts services so every service comes after the services it
// depends on (Kahn's algorithm). Ties keep input order, which makes the result
// deterministic for the sorted service list RenderSlot produces.
//
// Dependencies on services outside the list are ignored. Services left over
// by a cycle are appended in input order; RenderSlot rejects cycles before
// they get here.
//
// Example:
//
//	// Services: web → api → db
//	StartOrder(services) // [db, api, web]
func StartOrder(services []compose.Service) []compose.Service {
	if len(services) == 0 {
		return services
	}

	known := make(map[string]bool, len(services))
	for _, svc := range services {
		known[svc.Name] = true
	}

	inDegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if !known[dep] {
				continue
			}
			inDegree[svc.Name]++
			dependents[dep] = append(dependents[dep], svc.Name)
		}
	}

	var queue []string
	for _, svc := range services {
		if inDegree[svc.Name] == 0 {
			queue = append(queue, svc.Name)
		}
	}

	byName := make(map[string]compose.Service, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}

	result := make([]compose.Service, 0, len(services))
	placed := make(map[string]bool, len(services))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, byName[name])
		placed[name] = true

		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	for _, svc := range services {
		if !placed[svc.Name] {
			result = append(result, svc)
		}
	}
	return result
}

// StopOrder is StartOrder reversed: dependents stop before their dependencies.
func StopOrder(services []compose.Service) []compose.Service {
	ordered := StartOrder(services)
	reversed := make([]compose.Service, len(ordered))
	for i, svc := range ordered {
		reversed[len(ordered)-1-i] = svc
	}
	return reversed
}
