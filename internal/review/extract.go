package review

import "strings"

// AddedLines returns the lines a unified diff adds, in order. Line numbers
// are ordinals among the added lines; hunk headers are not consulted.
func AddedLines(diff string) []AddedLine {
	if diff == "" {
		return nil
	}
	var lines []AddedLine
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			lines = append(lines, AddedLine{
				Content: line[1:],
				Number:  len(lines) + 1,
			})
		}
	}
	return lines
}

// RemovedLineCount counts the lines a unified diff deletes.
func RemovedLineCount(diff string) int {
	if diff == "" {
		return 0
	}
	n := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			n++
		}
	}
	return n
}

func joinContent(lines []AddedLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Content
	}
	return strings.Join(parts, "\n")
}
