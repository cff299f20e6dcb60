// Package poller polls every active controller's cloud API on demand.
//
// One Run loads the active controller set, filters it through a
// deliberately generous eligibility heuristic, and partitions the
// survivors into rate-limit domains keyed by decrypted account
// identity. Domains run concurrently under a bounded worker pool;
// controllers inside a domain run strictly in sequence with a
// mandatory inter-call delay, because vendor APIs throttle per
// account and a violation degrades every controller on that account.
//
// Each attempt produces exactly one Outcome (success, degraded,
// failed, or skipped). Panics, timeouts, and store failures are all
// contained at the per-controller boundary.
package poller
