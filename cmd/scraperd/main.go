// Package main hosts the scraperd service entrypoint.
//
// Architecture overview:
//   - Sources: internal/sources defines each portal as data (targets, page
//     URL builder, parser, headers, rate limit) registered by name. The
//     EasyBroker source talks JSON, the portal sources parse HTML with
//     goquery; one source renders through headless Chrome.
//   - Engine: internal/scraper.Engine drives one source through its targets
//     and pages, composing a token-bucket rate limiter, exponential-backoff
//     retry, and a per-source circuit breaker around every fetch. Raw
//     payloads are archived to the configured blob store before parsing.
//   - Orchestrator: internal/scraper.Orchestrator runs engines sequentially
//     or in parallel under a single-flight gate, tracks per-source status,
//     persists statuses after every cycle, and publishes a cycle event.
//   - Persistence: internal/storage/postgres upserts normalized properties
//     keyed by (source, external_id) with per-row savepoints so one bad row
//     never sinks a batch.
//   - Plumbing: Viper populates config from file/env; zap provides
//     structured logging; Prometheus metrics are exported on /metrics.
package main

import "github.com/casaplaza/listing-scraper/cmd"

func main() {
	cmd.Execute()
}
