// Package iox holds small I/O cleanup helpers shared by the HTTP
// clients and stores.
package iox

import "io"

// DiscardClose closes c, dropping the error. For defers on response
// bodies and files where a close failure has no recovery path:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc adapts a Closer to the func() shape t.Cleanup wants:
//
//	t.Cleanup(iox.CloseFunc(store))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr runs fn, dropping the error. For deferred flush-style
// calls whose failure has no recovery path:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }
