// Package gitctx turns local git diffs into change-sets for the review
// engine.
//
// [Unstaged], [Staged] and [Range] shell out to git; [ReadPatch] accepts a
// unified diff from a file or stdin. [SplitChangeSet] parses a multi-file
// diff into one [review.ChangeEntry] per file, with hunk text shaped like
// the per-file diffs GitLab returns, so local and remote analysis agree.
package gitctx
