// Package exclusion decides whether an engagement coming from a given IP
// address may be tracked.
//
// Exclusions come from two sources: static entries in the service
// configuration (office networks, monitoring probes) and rows managed by
// administrators in the database. Each entry is a single address or a CIDR
// block and applies to opens, clicks or both.
//
// The rule set is loaded lazily and cached in-process for a short TTL; a
// failing repository never blocks tracking, it only reduces the rule set
// to the configured entries.
package exclusion
