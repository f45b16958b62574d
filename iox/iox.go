// Package iox provides cleanup helpers for closers whose errors are either
// unactionable or only worth a log line.
package iox

import "io"

// WarnFunc matches the signature of log.Logger.Warn.
type WarnFunc func(message string, fields map[string]any)

// DiscardClose closes c and discards the error.
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// DiscardErr calls fn and discards the returned error.
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// WarnClose closes c and reports a failure through warn, tagged with what.
// A nil warn behaves like DiscardClose.
//
//	defer iox.WarnClose(pol, logger.Warn, "policy")
func WarnClose(c io.Closer, warn WarnFunc, what string) {
	if err := c.Close(); err != nil && warn != nil {
		warn("close failed", map[string]any{
			"resource": what,
			"error":    err.Error(),
		})
	}
}
