package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/mrscan/internal/output"
)

const (
	hookMarkerStart = "# >>> mrscan pre-commit hook >>>"
	hookMarkerEnd   = "# <<< mrscan pre-commit hook <<<"
)

// hookTemplate is the managed block. Exit 1 blocks the commit; any other
// failure of mrscan itself lets the commit through with a warning.
const hookTemplate = hookMarkerStart + `
mrscan analyze staged --fail-under %d --format %s
MRSCAN_EXIT=$?
if [ $MRSCAN_EXIT -eq 1 ]; then
  echo "mrscan: score below threshold, commit blocked"
  exit 1
elif [ $MRSCAN_EXIT -ge 2 ]; then
  echo "mrscan: warning, analysis failed (exit $MRSCAN_EXIT), allowing commit"
fi
` + hookMarkerEnd + "\n"

var (
	hookFailUnder int
	hookFormat    string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install mrscan as a git pre-commit hook",
	Long:  "Add a block to the repository's pre-commit hook that scores staged changes and blocks the commit below --fail-under. Other hook content is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if hookFailUnder < 0 || hookFailUnder > 100 {
			return fmt.Errorf("--fail-under must be within 0..100, got %d", hookFailUnder)
		}
		if _, err := output.GetWriter(hookFormat); err != nil {
			return err
		}
		path, err := getHookPath()
		if err != nil {
			return hookFailed(err)
		}
		if err := installHook(path, generateHookScript(hookFailUnder, hookFormat)); err != nil {
			return hookFailed(err)
		}
		fmt.Fprintf(os.Stdout, "Installed mrscan pre-commit hook at %s\n", path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove mrscan pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := getHookPath()
		if err != nil {
			return hookFailed(err)
		}
		msg, err := uninstallHook(path)
		if err != nil {
			return hookFailed(err)
		}
		fmt.Fprintln(os.Stdout, msg)
		return nil
	},
}

func hookFailed(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = ExitRuntimeError
	return nil
}

// getHookPath resolves the pre-commit hook, honoring core.hooksPath.
func getHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse --git-path hooks failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), "pre-commit"), nil
}

func generateHookScript(failUnder int, format string) string {
	return fmt.Sprintf(hookTemplate, failUnder, format)
}

// installHook writes section into the hook at path, creating the file or
// replacing a previous mrscan block.
func installHook(path, section string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading hook file: %w", err)
	}

	content := "#!/bin/sh\n" + section
	if len(existing) > 0 {
		content = replaceHookSection(string(existing), section)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing hook file: %w", err)
	}
	return nil
}

// uninstallHook strips the mrscan block from the hook at path. A hook left
// with nothing but a shebang is deleted.
func uninstallHook(path string) (string, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "No pre-commit hook found.", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading hook file: %w", err)
	}

	content := removeHookSection(string(existing))
	switch strings.TrimSpace(content) {
	case "", "#!/bin/sh", "#!/bin/bash":
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("removing hook file: %w", err)
		}
		return "Removed mrscan pre-commit hook at " + path, nil
	}

	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", fmt.Errorf("writing hook file: %w", err)
	}
	return "Removed mrscan section from " + path, nil
}

// hookSection locates the managed block, end exclusive of a trailing
// newline.
func hookSection(content string) (start, end int, ok bool) {
	start = strings.Index(content, hookMarkerStart)
	if start == -1 {
		return 0, 0, false
	}
	rel := strings.Index(content[start:], hookMarkerEnd)
	if rel == -1 {
		return 0, 0, false
	}
	end = start + rel + len(hookMarkerEnd)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	return start, end, true
}

func replaceHookSection(existing, section string) string {
	start, end, ok := hookSection(existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return existing[:start] + section + existing[end:]
}

func removeHookSection(existing string) string {
	start, end, ok := hookSection(existing)
	if !ok {
		return existing
	}
	return existing[:start] + existing[end:]
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().IntVar(&hookFailUnder, "fail-under", 70, "Block the commit when the score is below this value")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif)")
}
