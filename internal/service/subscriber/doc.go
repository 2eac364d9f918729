// Package subscriber looks up the subscribers and lists that tracking hits
// refer to and applies the list mutations engagement rules ask for: moving
// or copying a subscriber to another list and updating field values.
package subscriber
