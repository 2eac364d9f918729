// Package httputil holds the response helpers shared by the tracking and
// health endpoints: JSON bodies, the error envelope, and the empty
// uncacheable replies the pixel and no-op clicks send.
package httputil
