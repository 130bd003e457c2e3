// Mrscan is a rule-based review bot for GitLab merge requests and GitHub
// pull requests.
//
// It scores each change-set against configurable rules, posts a summary
// report and inline comments for critical issues, and approves changes that
// reach the configured threshold. The same engine scores local changes for
// CI gating and git hooks.
//
// Usage:
//
//	mrscan serve                          # receive webhooks on :3000
//	mrscan review group/app 42            # review a GitLab merge request
//	mrscan review --scm github 17         # review a pull request of the origin repo
//	mrscan review --dry-run group/app 42  # score without posting
//	mrscan analyze staged --fail-under 80 # score staged changes
//	mrscan analyze patch change.diff      # score a patch file
//	mrscan hook install                   # gate commits on the score
package main
