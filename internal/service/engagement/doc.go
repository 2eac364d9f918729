// Package engagement records opens and clicks.
//
// Every tracking hit runs through the same pipeline:
//
//	lookup campaign and subscriber
//	take the idempotency guard for (event, campaign, subscriber, hour)
//	check eligibility (filter chain, then subscriber status)
//	write the event row
//	dispatch side effects (only after a successful write)
//	release the guard
//
// The Recorder never returns errors. Callers receive an Outcome, and for
// clicks a ClickDecision telling the HTTP layer whether to redirect, answer
// 404 or end the response empty. Failures past the lookups are logged and
// absorbed so mail clients never see them.
package engagement
