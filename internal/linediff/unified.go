package linediff

import (
	"bytes"
	"fmt"

	"github.com/sourcegraph/go-diff/diff"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Unified renders the difference between a and b as a unified diff.
// Identical inputs render as an empty byte slice.
func Unified(origName, newName string, a, b []string, context int) ([]byte, error) {
	lines := Diff(a, b)
	hunks := Hunks(lines, context)
	if len(hunks) == 0 {
		return []byte{}, nil
	}

	out, err := diff.PrintFileDiff(&diff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    hunks,
	})
	if err != nil {
		return nil, fmt.Errorf("printing diff: %w", err)
	}
	return out, nil
}

// Hunks groups diff lines into unified-diff hunks with up to context
// unchanged lines around each change. Changes closer than 2*context lines
// share a hunk.
func Hunks(lines []Line, context int) []*diff.Hunk {
	if context < 0 {
		context = 0
	}

	// Index ranges [start, end) of lines to include in each hunk.
	type span struct{ start, end int }
	var spans []span
	for i, l := range lines {
		if l.Kind == Same {
			continue
		}
		start := max(i-context, 0)
		end := min(i+context+1, len(lines))
		if n := len(spans); n > 0 && start <= spans[n-1].end {
			spans[n-1].end = max(spans[n-1].end, end)
			continue
		}
		spans = append(spans, span{start, end})
	}

	// Line numbers (1-based) of lines[i] in each input.
	origAt := make([]int32, len(lines)+1)
	newAt := make([]int32, len(lines)+1)
	var o, n int32 = 1, 1
	for i, l := range lines {
		origAt[i], newAt[i] = o, n
		if l.Kind != Added {
			o++
		}
		if l.Kind != Removed {
			n++
		}
	}
	origAt[len(lines)], newAt[len(lines)] = o, n

	hunks := make([]*diff.Hunk, 0, len(spans))
	for _, s := range spans {
		h := &diff.Hunk{
			OrigStartLine: origAt[s.start],
			NewStartLine:  newAt[s.start],
		}
		var body bytes.Buffer
		for _, l := range lines[s.start:s.end] {
			if l.Kind != Added {
				h.OrigLines++
			}
			if l.Kind != Removed {
				h.NewLines++
			}
			body.WriteString(l.Kind.String())
			body.WriteString(l.Text)
			body.WriteByte('\n')
		}
		if h.OrigLines == 0 {
			h.OrigStartLine--
		}
		if h.NewLines == 0 {
			h.NewStartLine--
		}
		h.Body = body.Bytes()
		hunks = append(hunks, h)
	}
	return hunks
}
