// Package linediff computes minimal line-based differences between two
// texts and renders them for display.
package linediff

import (
	"math"
	"slices"
	"strings"
)

// Kind classifies one line of a diff.
type Kind int

const (
	Same Kind = iota
	Added
	Removed
)

// String returns the unified-diff prefix of the kind.
func (k Kind) String() string {
	switch k {
	case Added:
		return "+"
	case Removed:
		return "-"
	default:
		return " "
	}
}

// Line is one display line of a diff.
type Line struct {
	Kind Kind
	Text string
}

// Split breaks content into lines. A single trailing newline does not
// produce an empty last line.
func Split(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// Diff returns the shortest edit script turning a into b, expressed as
// display lines in input order. Within a changed region, removals come
// before additions. It is a pure function of its inputs, and Diff(b, a)
// pairs the same lines as Diff(a, b) with added and removed exchanged.
//
// The implementation is the linear-space variant of Myers' O(ND)
// algorithm: it bisects the edit graph at the middle snake of an optimal
// path and recurses on both halves, so memory stays O(N+M).
func Diff(a, b []string) []Line {
	if slices.Compare(a, b) > 0 {
		e := newEditor(b, a)
		e.compare(0, len(b), 0, len(a))
		return merge(a, b, e.added, e.removed)
	}
	e := newEditor(a, b)
	e.compare(0, len(a), 0, len(b))
	return merge(a, b, e.removed, e.added)
}

// merge interleaves both inputs using the per-line change marks. Unmarked
// lines of a and b pair up in order.
func merge(a, b []string, removed, added []bool) []Line {
	out := make([]Line, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for i < len(a) && removed[i] {
			out = append(out, Line{Kind: Removed, Text: a[i]})
			i++
		}
		for j < len(b) && added[j] {
			out = append(out, Line{Kind: Added, Text: b[j]})
			j++
		}
		if i < len(a) && j < len(b) {
			out = append(out, Line{Kind: Same, Text: a[i]})
			i++
			j++
		}
	}
	return out
}

type editor struct {
	a, b    []string
	removed []bool
	added   []bool

	// Furthest-reaching x per diagonal k = x-y, forward and backward,
	// indexed by k+off.
	fd, bd []int
	off    int
}

func newEditor(a, b []string) *editor {
	size := len(a) + len(b) + 3
	return &editor{
		a:       a,
		b:       b,
		removed: make([]bool, len(a)),
		added:   make([]bool, len(b)),
		fd:      make([]int, size),
		bd:      make([]int, size),
		off:     len(b) + 1,
	}
}

// compare marks the changed lines of a[xoff:xlim] and b[yoff:ylim].
func (e *editor) compare(xoff, xlim, yoff, ylim int) {
	for xoff < xlim && yoff < ylim && e.a[xoff] == e.b[yoff] {
		xoff++
		yoff++
	}
	for xoff < xlim && yoff < ylim && e.a[xlim-1] == e.b[ylim-1] {
		xlim--
		ylim--
	}

	switch {
	case xoff == xlim:
		for y := yoff; y < ylim; y++ {
			e.added[y] = true
		}
	case yoff == ylim:
		for x := xoff; x < xlim; x++ {
			e.removed[x] = true
		}
	default:
		xmid, ymid := e.split(xoff, xlim, yoff, ylim)
		e.compare(xoff, xmid, yoff, ymid)
		e.compare(xmid, xlim, ymid, ylim)
	}
}

// split returns a point on an optimal path through the box, found where
// the forward and backward searches first overlap. Both ranges must be
// non-empty and differ in their first and last lines, so the point is
// never a corner of the box.
func (e *editor) split(xoff, xlim, yoff, ylim int) (int, int) {
	fd, bd, off := e.fd, e.bd, e.off
	dmin, dmax := xoff-ylim, xlim-yoff
	fmid, bmid := xoff-yoff, xlim-ylim
	fmin, fmax := fmid, fmid
	bmin, bmax := bmid, bmid
	odd := (fmid-bmid)&1 != 0

	fd[off+fmid] = xoff
	bd[off+bmid] = xlim

	for {
		if fmin > dmin {
			fmin--
			fd[off+fmin-1] = -1
		} else {
			fmin++
		}
		if fmax < dmax {
			fmax++
			fd[off+fmax+1] = -1
		} else {
			fmax--
		}
		for k := fmax; k >= fmin; k -= 2 {
			lo, hi := fd[off+k-1], fd[off+k+1]
			x := lo + 1
			if lo < hi {
				x = hi
			}
			y := x - k
			for x < xlim && y < ylim && e.a[x] == e.b[y] {
				x++
				y++
			}
			fd[off+k] = x
			if odd && bmin <= k && k <= bmax && bd[off+k] <= x {
				return x, y
			}
		}

		if bmin > dmin {
			bmin--
			bd[off+bmin-1] = math.MaxInt
		} else {
			bmin++
		}
		if bmax < dmax {
			bmax++
			bd[off+bmax+1] = math.MaxInt
		} else {
			bmax--
		}
		for k := bmax; k >= bmin; k -= 2 {
			lo, hi := bd[off+k-1], bd[off+k+1]
			x := hi - 1
			if lo < hi {
				x = lo
			}
			y := x - k
			for x > xoff && y > yoff && e.a[x-1] == e.b[y-1] {
				x--
				y--
			}
			bd[off+k] = x
			if !odd && fmin <= k && k <= fmax && x <= fd[off+k] {
				return x, y
			}
		}
	}
}

// Stats counts added and removed lines.
func Stats(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Kind {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	return added, removed
}
