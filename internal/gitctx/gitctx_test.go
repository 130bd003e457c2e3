package gitctx

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/mrscan/internal/review"
)

const multiFileDiff = `diff --git a/main.go b/main.go
index 83db48f..bf269f4 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+import "fmt"
-var x = 1
diff --git a/new.js b/new.js
new file mode 100644
index 0000000..e69de29
--- /dev/null
+++ b/new.js
@@ -0,0 +1,2 @@
+console.log("hi")
+var y = 2
diff --git a/old.py b/old.py
deleted file mode 100644
--- a/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-print("bye")
-x = 1
`

func TestSplitChangeSet(t *testing.T) {
	changes := SplitChangeSet(multiFileDiff)
	if len(changes) != 3 {
		t.Fatalf("got %d entries, want 3", len(changes))
	}

	tests := []struct {
		oldPath, newPath, diff string
	}{
		{"main.go", "main.go", "@@ -1,3 +1,4 @@\n package main\n+import \"fmt\"\n-var x = 1\n"},
		{"new.js", "new.js", "@@ -0,0 +1,2 @@\n+console.log(\"hi\")\n+var y = 2\n"},
		{"old.py", "old.py", "@@ -1,2 +0,0 @@\n-print(\"bye\")\n-x = 1\n"},
	}
	for i, tt := range tests {
		got := changes[i]
		if got.OldPath != tt.oldPath || got.NewPath != tt.newPath {
			t.Errorf("changes[%d] paths = %q -> %q, want %q -> %q", i, got.OldPath, got.NewPath, tt.oldPath, tt.newPath)
		}
		if got.Diff != tt.diff {
			t.Errorf("changes[%d].Diff = %q, want %q", i, got.Diff, tt.diff)
		}
	}
}

func TestSplitChangeSet_HeaderLinesNotCounted(t *testing.T) {
	changes := SplitChangeSet(multiFileDiff)
	if got := len(review.AddedLines(changes[1].Diff)); got != 2 {
		t.Errorf("added lines = %d, want 2", got)
	}
	if got := review.RemovedLineCount(changes[2].Diff); got != 2 {
		t.Errorf("removed lines = %d, want 2", got)
	}
	for _, c := range changes {
		if strings.Contains(c.Diff, "+++") || strings.Contains(c.Diff, "--- a/") {
			t.Errorf("%s: diff should not contain file headers: %q", c.NewPath, c.Diff)
		}
	}
}

func TestSplitChangeSet_Rename(t *testing.T) {
	diff := `diff --git a/src/old name.go b/src/new.go
similarity index 90%
rename from src/old name.go
rename to src/new.go
--- a/src/old name.go
+++ b/src/new.go
@@ -1 +1 @@
-package a
+package b
`
	changes := SplitChangeSet(diff)
	if len(changes) != 1 {
		t.Fatalf("got %d entries, want 1", len(changes))
	}
	if changes[0].OldPath != "src/old name.go" || changes[0].NewPath != "src/new.go" {
		t.Errorf("paths = %q -> %q", changes[0].OldPath, changes[0].NewPath)
	}
}

func TestSplitChangeSet_BinaryAndPureRename(t *testing.T) {
	diff := `diff --git a/logo.png b/logo.png
index 1111111..2222222 100644
Binary files a/logo.png and b/logo.png differ
diff --git a/a.go b/b.go
similarity index 100%
rename from a.go
rename to b.go
`
	changes := SplitChangeSet(diff)
	if len(changes) != 2 {
		t.Fatalf("got %d entries, want 2", len(changes))
	}
	if changes[0].NewPath != "logo.png" || changes[0].Diff != "" {
		t.Errorf("binary entry = %+v", changes[0])
	}
	if changes[1].OldPath != "a.go" || changes[1].NewPath != "b.go" || changes[1].Diff != "" {
		t.Errorf("rename entry = %+v", changes[1])
	}
}

func TestSplitChangeSet_Empty(t *testing.T) {
	changes := SplitChangeSet("")
	if changes == nil || len(changes) != 0 {
		t.Errorf("SplitChangeSet(\"\") = %#v, want empty non-nil", changes)
	}
}

func TestSplitChangeSet_PlainUnifiedDiff(t *testing.T) {
	diff := "--- a/x.go\t2026-01-01 00:00:00\n+++ b/x.go\t2026-01-02 00:00:00\n@@ -1 +1,2 @@\n a\n+b\n"
	changes := SplitChangeSet(diff)
	if len(changes) != 1 {
		t.Fatalf("got %d entries, want 1", len(changes))
	}
	if changes[0].NewPath != "x.go" {
		t.Errorf("NewPath = %q, want %q", changes[0].NewPath, "x.go")
	}
}

func TestSplitDiffSections(t *testing.T) {
	diff := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,3 +1,4 @@
+line1
diff --git a/b.go b/b.go
--- a/b.go
+++ b/b.go
@@ -1,3 +1,4 @@
+line2
`
	sections := splitDiffSections(diff)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if !strings.Contains(sections[0], "a.go") {
		t.Error("section 0 should contain a.go")
	}
	if !strings.Contains(sections[1], "b.go") {
		t.Error("section 1 should contain b.go")
	}
}

func TestHeaderPaths(t *testing.T) {
	a, b := headerPaths("a/dir/x.go b/dir/y.go")
	if a != "dir/x.go" || b != "dir/y.go" {
		t.Errorf("headerPaths = %q, %q", a, b)
	}
	a, b = headerPaths("garbage")
	if a != "" || b != "" {
		t.Errorf("headerPaths(garbage) = %q, %q", a, b)
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.go", []string{"vendor/**"}, true},
		{"main.go", []string{"vendor/**"}, false},
		{"foo.gen.go", []string{"**/*.gen.go"}, true},
		{"pkg/foo.gen.go", []string{"**/*.gen.go"}, true},
		{"dist/bundle.js", []string{"**/dist/**"}, true},
		{"main.go", []string{"*.go"}, true},
		{"main.go", nil, false},
	}
	for _, tt := range tests {
		got := MatchesAny(tt.path, tt.patterns)
		if got != tt.want {
			t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}

func TestReadPatch_Exclude(t *testing.T) {
	res, err := ReadPatch(strings.NewReader(multiFileDiff), DiffOptions{Exclude: []string{"*.py"}})
	if err != nil {
		t.Fatalf("ReadPatch error: %v", err)
	}
	if res.Mode != "patch" {
		t.Errorf("Mode = %q, want patch", res.Mode)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("got %d entries, want 2", len(res.Changes))
	}
	for _, c := range res.Changes {
		if c.NewPath == "old.py" {
			t.Error("old.py should be excluded")
		}
	}
}

func TestBuildDiffArgs(t *testing.T) {
	args := buildDiffArgs(DiffOptions{ContextLines: 5, Include: []string{"**/*", "src/"}})
	want := []string{"-U5", "--", "src/"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("buildDiffArgs = %v, want %v", args, want)
	}
	args = buildDiffArgs(DiffOptions{})
	if len(args) != 1 || args[0] != "--" {
		t.Errorf("buildDiffArgs(empty) = %v, want [--]", args)
	}
}

// setupTestRepo creates a temp git repo with one commit and chdirs into it.
func setupTestRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	run("init")
	run("checkout", "-b", "main")
	write(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	run("add", "-A")
	run("commit", "-m", "init")

	origDir, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir, run
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUnstagedAndStaged(t *testing.T) {
	dir, run := setupTestRepo(t)
	write(t, dir, "main.go", "package main\n\nfunc main() {\n\tdebugger()\n}\n")

	res, err := Unstaged(DiffOptions{})
	if err != nil {
		t.Fatalf("Unstaged error: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].NewPath != "main.go" {
		t.Fatalf("Unstaged changes = %+v", res.Changes)
	}
	if res.Repo.Head == "" || res.Changes[0].DiffRefs.HeadSHA != res.Repo.Head {
		t.Errorf("DiffRefs.HeadSHA = %q, want repo head %q", res.Changes[0].DiffRefs.HeadSHA, res.Repo.Head)
	}

	run("add", "main.go")
	staged, err := Staged(DiffOptions{})
	if err != nil {
		t.Fatalf("Staged error: %v", err)
	}
	if len(staged.Changes) != 1 || staged.Mode != "staged" {
		t.Fatalf("Staged = %+v", staged)
	}
	if !strings.Contains(staged.Changes[0].Diff, "+\tdebugger()") {
		t.Errorf("staged diff = %q", staged.Changes[0].Diff)
	}
}

func TestRange(t *testing.T) {
	dir, run := setupTestRepo(t)
	run("checkout", "-b", "feature")
	write(t, dir, "util.go", "package main\n\nfunc helper() {}\n")
	run("add", "-A")
	run("commit", "-m", "add util")

	res, err := Range("main..feature", true, DiffOptions{})
	if err != nil {
		t.Fatalf("Range error: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].NewPath != "util.go" {
		t.Fatalf("Range changes = %+v", res.Changes)
	}
	refs := res.Changes[0].DiffRefs
	if refs.BaseSHA == "" || refs.HeadSHA == "" || refs.BaseSHA == refs.HeadSHA {
		t.Errorf("DiffRefs = %+v, want distinct base and head", refs)
	}
}
