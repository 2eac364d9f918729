// Package reaction runs the side effects of a recorded engagement event.
//
// A Dispatcher holds one ordered chain of reactions per event type, built
// at startup. Every reaction in a chain runs, whatever the previous ones
// did: a failing or panicking reaction is recorded and the chain moves on.
// The dispatcher is only invoked after the event row has been written.
//
// Default chains:
//
//	open:  field update, subscriber move/copy, webhook enqueue, A/B counter
//	click: field update, subscriber move/copy, webhook enqueue
package reaction
