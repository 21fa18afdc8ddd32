// Package logtest - Loggers for tests whose entries can be asserted on.
package logtest

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedTestLogger returns a debug-level logger named after the test and the sink that
// records its entries.
func NewObservedTestLogger(tb testing.TB) (*zap.SugaredLogger, *observer.ObservedLogs) {
	tb.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core).Named(tb.Name()).Sugar(), logs
}
