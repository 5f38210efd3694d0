// Package task implements the durable analysis queue and its worker pool:
// deduplicated submission keyed by deterministic task IDs, at-least-once
// delivery with bounded retries and exponential backoff, a process-wide
// dispatch rate limit, and graceful worker shutdown.
package task
