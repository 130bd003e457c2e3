// Package orchestrator sequences a merge-request review: fetch the
// change-set, analyze it, render the report, post the summary, optionally
// approve, and annotate the worst findings inline.
//
// The pipeline is an explicit list of named steps. Fetching and analyzing
// are fatal to a run; posting, approving and annotating each have their own
// failure boundary, so a failure is logged and recorded in the Outcome and
// the remaining steps still run. Nothing is retried.
//
// Webhook events enter through OnMergeRequestEvent, which gates them and
// schedules the run after a delay without blocking the caller.
package orchestrator
