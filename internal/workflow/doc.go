// Package workflow is the licensing workflow controller.
//
// The Controller owns the WorkflowState, asks the Gate before starting any
// action, drives the Android and Windows flows through the backend proxy and
// reports every step on the Tracker. Every action returns an Outcome whose
// Kind tells front ends how to render it:
//
//	success              the operation completed
//	partial_success      the combined Windows flow wrote a license that did not verify
//	negative_result      a verification ran and did not pass
//	precondition_failed  the Gate refused the action; no backend call was made
//	remote_failure       the backend could not complete the operation
//	cancelled            a dialog was dismissed or a result was superseded
//
// Controls disabled when an action starts are re-enabled on every exit path.
// No timeout is imposed on backend calls: the caller's context is passed
// through untouched.
package workflow
