// Package content resolves tracked-link destinations.
//
// Resolution runs up to two substitution passes over a raw destination:
// the bracketed merge-tag pass ([FIRST_NAME], [CAMPAIGN_UID], ...) and, when
// enabled, a Liquid template pass ({{ subscriber.first_name }}). The result
// is normalised and must pass IsValidURL before anyone redirects to it.
package content
