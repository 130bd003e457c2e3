// Package scm defines the source-control collaborator used by the review
// orchestrator: fetching merge-request metadata and change-sets, posting
// comments, and approving.
//
// Concrete clients live in internal/gitlab and internal/github.
package scm
