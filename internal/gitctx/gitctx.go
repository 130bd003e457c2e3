package gitctx

import (
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dshills/mrscan/internal/review"
)

const devNull = "/dev/null"

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	Include      []string
	Exclude      []string
}

// DiffResult holds the collected change-set and metadata.
type DiffResult struct {
	Changes []review.ChangeEntry
	Mode    string
	Range   string
	Repo    RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the change-set of working tree vs index.
func Unstaged(opts DiffOptions) (DiffResult, error) {
	diff, err := gitOutput(append([]string{"diff"}, buildDiffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff: %w", err)
	}
	return buildResult(diff, "unstaged", "", opts), nil
}

// Staged returns the change-set of index vs HEAD.
func Staged(opts DiffOptions) (DiffResult, error) {
	diff, err := gitOutput(append([]string{"diff", "--cached"}, buildDiffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return buildResult(diff, "staged", "", opts), nil
}

// Range returns the change-set for a revision range. With mergeBase, "a..b"
// is compared from the merge base, as a merge request would be.
func Range(revRange string, mergeBase bool, opts DiffOptions) (DiffResult, error) {
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	diff, err := gitOutput(append([]string{"diff", diffRange}, buildDiffArgs(opts)...)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	res := buildResult(diff, "range", revRange, opts)
	refs := rangeRefs(revRange)
	for i := range res.Changes {
		res.Changes[i].DiffRefs = refs
	}
	return res, nil
}

// ReadPatch reads a unified diff, such as the output of git format-patch or
// git diff, from r. No repository is required.
func ReadPatch(r io.Reader, opts DiffOptions) (DiffResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return DiffResult{}, fmt.Errorf("reading patch: %w", err)
	}
	return DiffResult{
		Changes: filterChanges(SplitChangeSet(string(data)), opts.Exclude),
		Mode:    "patch",
	}, nil
}

func buildDiffArgs(opts DiffOptions) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, "--")
	for _, p := range opts.Include {
		if p != "**/*" {
			args = append(args, p)
		}
	}
	return args
}

func buildResult(diff, mode, rangeStr string, opts DiffOptions) DiffResult {
	meta, err := GetRepoMeta()
	if err != nil {
		meta = RepoMeta{}
	}
	changes := filterChanges(SplitChangeSet(diff), opts.Exclude)
	if mode != "range" {
		for i := range changes {
			changes[i].DiffRefs = review.DiffRefs{BaseSHA: meta.Head, StartSHA: meta.Head, HeadSHA: meta.Head}
		}
	}
	return DiffResult{
		Changes: changes,
		Mode:    mode,
		Range:   rangeStr,
		Repo:    meta,
	}
}

// rangeRefs resolves the endpoints of a range to commit SHAs. Unresolvable
// endpoints are left empty.
func rangeRefs(revRange string) review.DiffRefs {
	sep := ".."
	if strings.Contains(revRange, "...") {
		sep = "..."
	}
	base, head, ok := strings.Cut(revRange, sep)
	if !ok {
		base, head = revRange, "HEAD"
	}
	if head == "" {
		head = "HEAD"
	}
	refs := review.DiffRefs{BaseSHA: revParse(base), HeadSHA: revParse(head)}
	refs.StartSHA = refs.BaseSHA
	return refs
}

func revParse(rev string) string {
	out, err := gitOutput("rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func filterChanges(changes []review.ChangeEntry, excludes []string) []review.ChangeEntry {
	if len(excludes) == 0 {
		return changes
	}
	kept := changes[:0]
	for _, c := range changes {
		if !MatchesAny(c.NewPath, excludes) {
			kept = append(kept, c)
		}
	}
	return kept
}

// SplitChangeSet splits a multi-file unified diff into one entry per file.
// Each entry's Diff starts at the first hunk header, so the ---/+++ lines
// are not part of it. An added file takes its new path as the old path,
// and a deleted file its old path as the new path. Sections without a
// recognizable path are dropped.
func SplitChangeSet(diff string) []review.ChangeEntry {
	changes := []review.ChangeEntry{}
	for _, section := range splitDiffSections(diff) {
		entry, ok := parseSection(section)
		if ok {
			changes = append(changes, entry)
		}
	}
	return changes
}

func splitDiffSections(diff string) []string {
	var sections []string
	lines := strings.Split(diff, "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

func parseSection(section string) (review.ChangeEntry, bool) {
	var entry review.ChangeEntry
	var oldSet, newSet bool
	lines := strings.SplitAfter(section, "\n")

	body := -1
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(trimmed, "@@"):
			body = i
		case strings.HasPrefix(trimmed, "diff --git "):
			a, b := headerPaths(strings.TrimPrefix(trimmed, "diff --git "))
			entry.OldPath, entry.NewPath = a, b
		case strings.HasPrefix(trimmed, "rename from "):
			entry.OldPath, oldSet = unquote(strings.TrimPrefix(trimmed, "rename from ")), true
		case strings.HasPrefix(trimmed, "rename to "):
			entry.NewPath, newSet = unquote(strings.TrimPrefix(trimmed, "rename to ")), true
		case strings.HasPrefix(trimmed, "--- ") && !oldSet:
			entry.OldPath, oldSet = stripPrefix(trimmed[4:], "a/"), true
		case strings.HasPrefix(trimmed, "+++ ") && !newSet:
			entry.NewPath, newSet = stripPrefix(trimmed[4:], "b/"), true
		}
		if body >= 0 {
			break
		}
	}

	if entry.OldPath == devNull {
		entry.OldPath = entry.NewPath
	}
	if entry.NewPath == devNull {
		entry.NewPath = entry.OldPath
	}
	if entry.NewPath == "" || entry.NewPath == devNull {
		return review.ChangeEntry{}, false
	}
	if body >= 0 {
		entry.Diff = strings.TrimRight(strings.Join(lines[body:], ""), "\n") + "\n"
	}
	return entry, true
}

// headerPaths splits "a/x b/y" from a diff --git line. Paths containing
// " b/" are ambiguous here; the ---/+++ lines override them.
func headerPaths(s string) (string, string) {
	i := strings.LastIndex(s, " b/")
	if i < 0 {
		return "", ""
	}
	return stripPrefix(s[:i], "a/"), stripPrefix(s[i+1:], "b/")
}

func stripPrefix(p, prefix string) string {
	p = unquote(p)
	// Timestamps follow a tab in some diff producers.
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	if p == devNull {
		return p
	}
	return strings.TrimPrefix(p, prefix)
}

func unquote(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		return p[1 : len(p)-1]
	}
	return p
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
