package review

import "testing"

func TestAddedLines(t *testing.T) {
	diff := "--- a/app.js\n+++ b/app.js\n@@ -1,3 +1,4 @@\n context\n-removed\n+first\n+\n++double\n"
	lines := AddedLines(diff)

	want := []AddedLine{
		{Content: "first", Number: 1},
		{Content: "", Number: 2},
		{Content: "+double", Number: 3},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestAddedLines_Empty(t *testing.T) {
	if got := AddedLines(""); len(got) != 0 {
		t.Errorf("AddedLines(\"\") = %+v, want empty", got)
	}
	if got := AddedLines(" context\n-gone\n"); len(got) != 0 {
		t.Errorf("AddedLines(no additions) = %+v, want empty", got)
	}
}

func TestAddedLines_IgnoresHunkNumbers(t *testing.T) {
	diff := "@@ -40,2 +40,3 @@\n ctx\n+new\n@@ -90,1 +91,2 @@\n+later\n"
	lines := AddedLines(diff)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Number != 1 || lines[1].Number != 2 {
		t.Errorf("numbers = %d, %d, want 1, 2", lines[0].Number, lines[1].Number)
	}
}

func TestRemovedLineCount(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want int
	}{
		{"empty", "", 0},
		{"header only", "--- a/x.go\n+++ b/x.go\n", 0},
		{"two removed", "--- a/x.go\n+++ b/x.go\n-one\n-two\n+three\n", 2},
		{"double dash content", "--double\n", 1},
		{"triple dash marker", "---x\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemovedLineCount(tt.diff); got != tt.want {
				t.Errorf("RemovedLineCount = %d, want %d", got, tt.want)
			}
		})
	}
}
