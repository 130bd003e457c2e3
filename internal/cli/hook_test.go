package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateHookScript(t *testing.T) {
	script := generateHookScript(70, "text")

	if !strings.Contains(script, hookMarkerStart) {
		t.Error("Script missing start marker")
	}
	if !strings.Contains(script, hookMarkerEnd) {
		t.Error("Script missing end marker")
	}
	if !strings.Contains(script, "mrscan analyze staged --fail-under 70 --format text") {
		t.Error("Script missing mrscan command with correct flags")
	}
	if !strings.Contains(script, "MRSCAN_EXIT=$?") {
		t.Error("Script missing exit code capture")
	}
	if !strings.Contains(script, "exit 1") {
		t.Error("Script missing exit 1 for low scores")
	}
	if !strings.Contains(script, "allowing commit") {
		t.Error("Script missing warning for errors")
	}
}

func TestGenerateHookScript_CustomFlags(t *testing.T) {
	script := generateHookScript(95, "json")

	if !strings.Contains(script, "--fail-under 95") {
		t.Error("Script doesn't use custom fail-under")
	}
	if !strings.Contains(script, "--format json") {
		t.Error("Script doesn't use custom format")
	}
}

func TestReplaceHookSection_NoExisting(t *testing.T) {
	existing := "#!/bin/sh\nsome-other-hook\n"
	section := generateHookScript(70, "text")

	result := replaceHookSection(existing, section)

	if !strings.HasPrefix(result, "#!/bin/sh\nsome-other-hook\n") {
		t.Error("Existing content should be preserved")
	}
	if !strings.Contains(result, hookMarkerStart) {
		t.Error("New section should be appended")
	}
}

func TestReplaceHookSection_ExistingSection(t *testing.T) {
	oldSection := generateHookScript(50, "text")
	existing := "#!/bin/sh\nbefore\n" + oldSection + "after\n"
	newSection := generateHookScript(80, "json")

	result := replaceHookSection(existing, newSection)

	if !strings.Contains(result, "before") {
		t.Error("Content before mrscan section should be preserved")
	}
	if !strings.Contains(result, "after") {
		t.Error("Content after mrscan section should be preserved")
	}
	if !strings.Contains(result, "--fail-under 80") {
		t.Error("New section should have updated flags")
	}
	if strings.Contains(result, "--fail-under 50") {
		t.Error("Old section should be replaced")
	}
	if strings.Count(result, hookMarkerStart) != 1 {
		t.Error("Section should appear exactly once")
	}
}

func TestRemoveHookSection(t *testing.T) {
	section := generateHookScript(70, "text")
	existing := "#!/bin/sh\nbefore\n" + section + "after\n"

	result := removeHookSection(existing)

	if strings.Contains(result, hookMarkerStart) {
		t.Error("mrscan section should be removed")
	}
	if !strings.Contains(result, "before") {
		t.Error("Content before should be preserved")
	}
	if !strings.Contains(result, "after") {
		t.Error("Content after should be preserved")
	}
}

func TestRemoveHookSection_NoSection(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook\n"
	if result := removeHookSection(existing); result != existing {
		t.Error("Content without mrscan section should be unchanged")
	}
}

func TestReplaceHookSection_NoTrailingNewline(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook"
	section := generateHookScript(70, "text")

	result := replaceHookSection(existing, section)

	if !strings.Contains(result, "some-hook\n"+hookMarkerStart) {
		t.Error("Section should be appended on its own line")
	}
}

func TestInstallHook_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks", "pre-commit")

	if err := installHook(path, generateHookScript(70, "text")); err != nil {
		t.Fatalf("installHook: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/sh\n"+hookMarkerStart) {
		t.Errorf("hook = %q, want shebang then section", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Error("hook should be executable")
	}
}

func TestInstallHook_Reinstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pre-commit")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nmake lint\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{60, 80} {
		if err := installHook(path, generateHookScript(n, "text")); err != nil {
			t.Fatalf("installHook: %v", err)
		}
	}

	data, _ := os.ReadFile(path)
	got := string(data)
	if strings.Count(got, hookMarkerStart) != 1 {
		t.Errorf("section count = %d, want 1", strings.Count(got, hookMarkerStart))
	}
	if !strings.Contains(got, "make lint") || !strings.Contains(got, "--fail-under 80") {
		t.Errorf("unexpected hook content:\n%s", got)
	}
}

func TestUninstallHook(t *testing.T) {
	tests := []struct {
		name       string
		existing   string
		wantExists bool
	}{
		{"only mrscan", "#!/bin/sh\n" + generateHookScript(70, "text"), false},
		{"with other content", "#!/bin/sh\nmake lint\n" + generateHookScript(70, "text"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pre-commit")
			if err := os.WriteFile(path, []byte(tt.existing), 0o755); err != nil {
				t.Fatal(err)
			}

			if _, err := uninstallHook(path); err != nil {
				t.Fatalf("uninstallHook: %v", err)
			}

			data, err := os.ReadFile(path)
			if exists := err == nil; exists != tt.wantExists {
				t.Fatalf("hook exists = %v, want %v", exists, tt.wantExists)
			}
			if strings.Contains(string(data), hookMarkerStart) {
				t.Error("mrscan section should be removed")
			}
		})
	}
}

func TestUninstallHook_Missing(t *testing.T) {
	msg, err := uninstallHook(filepath.Join(t.TempDir(), "pre-commit"))
	if err != nil {
		t.Fatalf("uninstallHook: %v", err)
	}
	if !strings.Contains(msg, "No pre-commit hook") {
		t.Errorf("msg = %q", msg)
	}
}
