package history_test

import (
	"errors"
	"strings"
	"testing"

	"jch-go/internal/history"
	"jch-go/internal/linediff"
	"jch-go/internal/testutil"
)

func setupDiff(t *testing.T) *history.DiffEngine {
	t.Helper()
	s := testutil.NewTestStore(t)
	h := testutil.NewHistory(t, s)

	h.AddRecordContent(history.RootSystem, "config", "2024-01-01_00-00-00", history.OpChanged,
		[]byte("<hudson>\n  <numExecutors>2</numExecutors>\n  <mode>NORMAL</mode>\n</hudson>\n"))
	h.AddRecordContent(history.RootSystem, "config", "2024-01-02_00-00-00", history.OpChanged,
		[]byte("<hudson>\n  <numExecutors>4</numExecutors>\n  <mode>NORMAL</mode>\n  <label>fast</label>\n</hudson>\n"))
	h.AddRecordContent(history.RootJobs, "Alpha", "2024-01-01_00-00-00", history.OpCreated, []byte("<project>\n  <a/>\n</project>\n"))
	h.AddRecordContent(history.RootJobs, "Alpha", "2024-01-02_00-00-00", history.OpChanged, []byte("<project>\n  <b/>\n</project>\n"))

	return history.NewDiffEngine(s, history.NewNopLogger())
}

func kinds(lines []linediff.Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Kind.String())
	}
	return b.String()
}

func TestDiffEngine_Lines(t *testing.T) {
	d := setupDiff(t)
	auth := testutil.Auth(true, true)

	lines, err := d.Lines(auth, "config", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if got := kinds(lines); got != " -+ + " {
		t.Errorf("kinds = %q, want %q", got, " -+ + ")
	}
	added, removed := linediff.Stats(lines)
	if added != 2 || removed != 1 {
		t.Errorf("Stats() = +%d -%d, want +2 -1", added, removed)
	}

	// Swapping the arguments swaps the roles of added and removed.
	reverse, err := d.Lines(auth, "config", "2024-01-02_00-00-00", "2024-01-01_00-00-00")
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	radded, rremoved := linediff.Stats(reverse)
	if radded != removed || rremoved != added {
		t.Errorf("reverse Stats() = +%d -%d, want +%d -%d", radded, rremoved, removed, added)
	}
	if sameText(lines) != sameText(reverse) {
		t.Errorf("unchanged lines differ: %q vs %q", sameText(lines), sameText(reverse))
	}
}

func sameText(lines []linediff.Line) string {
	var out []string
	for _, l := range lines {
		if l.Kind == linediff.Same {
			out = append(out, l.Text)
		}
	}
	return strings.Join(out, "\n")
}

func TestDiffEngine_Identical(t *testing.T) {
	d := setupDiff(t)
	lines, err := d.Lines(testutil.Auth(true, false), "config", "2024-01-01_00-00-00", "2024-01-01_00-00-00")
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if got := kinds(lines); strings.Trim(got, " ") != "" {
		t.Errorf("identical revisions produced changes: %q", got)
	}
}

func TestDiffEngine_Unreadable(t *testing.T) {
	d := setupDiff(t)
	auth := testutil.Auth(true, true)

	tests := []struct {
		name       string
		object     string
		ts1, ts2   string
		wantErrIs  error
		wantLength int
	}{
		{name: "missing revision", object: "config", ts1: "2024-01-01_00-00-00", ts2: "2030-01-01_00-00-00"},
		{name: "malformed timestamp", object: "config", ts1: "bad", ts2: "2024-01-02_00-00-00"},
		{name: "null name", object: "null", ts1: "2024-01-01_00-00-00", ts2: "2024-01-02_00-00-00"},
		{name: "traversal", object: "../config", ts1: "2024-01-01_00-00-00", ts2: "2024-01-02_00-00-00", wantErrIs: history.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := d.Lines(auth, tt.object, tt.ts1, tt.ts2)
			if tt.wantErrIs != nil {
				if !errors.Is(err, tt.wantErrIs) {
					t.Fatalf("Lines() error = %v, want %v", err, tt.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lines() error = %v", err)
			}
			if lines == nil || len(lines) != 0 {
				t.Errorf("Lines() = %v, want empty", lines)
			}
		})
	}
}

func TestDiffEngine_Permissions(t *testing.T) {
	d := setupDiff(t)

	lines, err := d.Lines(testutil.Auth(false, true), "config", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("system diff without capability = %v", lines)
	}

	jobLines, err := d.JobLines(testutil.Auth(true, false), "Alpha", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("JobLines() error = %v", err)
	}
	if len(jobLines) != 0 {
		t.Errorf("job diff without capability = %v", jobLines)
	}
}

func TestDiffEngine_JobLines(t *testing.T) {
	d := setupDiff(t)
	lines, err := d.JobLines(testutil.Auth(false, true), "Alpha", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("JobLines() error = %v", err)
	}
	if got := kinds(lines); got != " -+ " {
		t.Errorf("kinds = %q, want %q", got, " -+ ")
	}
}

func TestDiffEngine_Unified(t *testing.T) {
	d := setupDiff(t)
	out, err := d.Unified(testutil.Auth(false, true), history.RootJobs, "Alpha", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("Unified() error = %v", err)
	}
	text := string(out)
	for _, want := range []string{"--- Alpha@2024-01-01_00-00-00", "+++ Alpha@2024-01-02_00-00-00", "-  <a/>", "+  <b/>"} {
		if !strings.Contains(text, want) {
			t.Errorf("unified output missing %q:\n%s", want, text)
		}
	}

	denied, err := d.Unified(testutil.Auth(false, true), history.RootSystem, "config", "2024-01-01_00-00-00", "2024-01-02_00-00-00")
	if err != nil {
		t.Fatalf("Unified() error = %v", err)
	}
	if len(denied) != 0 {
		t.Errorf("Unified() without capability = %q", denied)
	}
}
