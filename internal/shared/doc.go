// Package shared holds helpers used by more than one licensebridge package.
//
// The testutil subpackage captures slog output so tests can assert on what
// a component logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	tracker := workflow.NewTracker(logger)
//	tracker.SetStatus("boom", true)
//	testutil.AssertLogContains(t, logs, slog.LevelError, "boom")
package shared
