package sonargate

import (
	"fmt"
	"time"
)

// Resource types known to the default registry. Tool handlers pass these to
// Client.Get; the payloads behind them stay opaque to this layer.
const (
	ResourceProjects         = "projects"
	ResourceMetrics          = "metrics"
	ResourceIssues           = "issues"
	ResourceQualityGates     = "quality_gates"
	ResourceSecurityHotspots = "security_hotspots"
	ResourcePermissions      = "permissions"
)

// resourceSpec binds a resource type to its upstream endpoint, the query
// parameter carrying the resource id, and its cache TTL.
type resourceSpec struct {
	Path    string
	IDParam string
	TTL     time.Duration
}

// TTLPolicy maps resource types to entry lifetimes. Every type the client
// serves must have an entry; lookups for unregistered types fail fast.
type TTLPolicy map[string]time.Duration

func defaultResources() map[string]resourceSpec {
	return map[string]resourceSpec{
		ResourceProjects:         {Path: "/api/projects/search", IDParam: "projects", TTL: 5 * time.Minute},
		ResourceMetrics:          {Path: "/api/measures/component", IDParam: "component", TTL: 5 * time.Minute},
		ResourceIssues:           {Path: "/api/issues/search", IDParam: "componentKeys", TTL: time.Minute},
		ResourceQualityGates:     {Path: "/api/qualitygates/project_status", IDParam: "projectKey", TTL: 10 * time.Minute},
		ResourceSecurityHotspots: {Path: "/api/hotspots/search", IDParam: "projectKey", TTL: 5 * time.Minute},
		ResourcePermissions:      {Path: "/api/permissions/users", IDParam: "projectKey", TTL: 30 * time.Minute},
	}
}

// buildResources applies per-type TTL overrides to the default registry.
// Overrides naming an unregistered type are a configuration error.
func buildResources(overrides map[string]time.Duration) (map[string]resourceSpec, error) {
	resources := defaultResources()
	for name, ttl := range overrides {
		spec, ok := resources[name]
		if !ok {
			return nil, fmt.Errorf("%w: ttl override for %q", ErrUnknownResourceType, name)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("ttl override for %q must be positive, got %v", name, ttl)
		}
		spec.TTL = ttl
		resources[name] = spec
	}
	return resources, nil
}

func ttlPolicyFor(resources map[string]resourceSpec) TTLPolicy {
	policy := make(TTLPolicy, len(resources))
	for name, spec := range resources {
		policy[name] = spec.TTL
	}
	return policy
}
