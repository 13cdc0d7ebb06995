// Package sonargate is the resilient data-access layer between MCP tool
// handlers and a SonarQube REST server. It composes:
//
//   - Pooled keep-alive HTTP transport with bearer-token auth and bounded
//     connect/read timeouts
//   - A shared token-bucket rate limiter with Retry-After feedback on 429
//   - Classification-driven retries with exponential backoff + jitter
//   - A bounded, TTL-per-resource-type LRU cache
//   - Per-key singleflight so concurrent tool calls for the same resource
//     trigger exactly one upstream fetch
//   - Optional circuit breaking, Prometheus metrics and structured logging
//
// Response bodies are treated as opaque payloads keyed by resource identity;
// this layer never interprets SonarQube domain semantics.
//
// Typical usage:
//
//	cfg, err := sonargate.LoadConfig() // SONARQUBE_URL, SONARQUBE_TOKEN, ...
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := sonargate.New(cfg,
//	    sonargate.WithLogger(sonargate.NewDefaultLogger(os.Stderr, zerolog.InfoLevel)),
//	    sonargate.WithMetrics(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	body, err := client.Get(ctx, sonargate.ResourceIssues, "my-project",
//	    map[string]string{"resolved": "false"})
//
// After a mutating tool call succeeds, invalidate the affected project so
// subsequent reads refetch:
//
//	client.InvalidateProject("my-project")
package sonargate
