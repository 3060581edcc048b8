package geomutil

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// endpoint snap tolerance for merging, ~0.1 m.
const mergeTolDeg = 1e-6

func nodeKey(c geom.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c[0], c[1])
}

// Merge joins polylines that meet end-to-end into maximal connected pieces.
// It only fuses at nodes where exactly two line ends meet, so distinct
// branches at junctions stay separate, and it never bridges between lines
// that do not share an endpoint. The input is not modified.
func Merge(lines []*geom.LineString) []*geom.LineString {
	work := make([][]geom.Coord, 0, len(lines))
	for _, ls := range lines {
		if ls.NumCoords() >= 2 {
			work = append(work, ls.Coords())
		}
	}

	for {
		ends := make(map[string][]int) // node key -> indexes of lines ending there
		for i, cs := range work {
			if cs == nil {
				continue
			}
			ends[nodeKey(cs[0])] = append(ends[nodeKey(cs[0])], i)
			ends[nodeKey(cs[len(cs)-1])] = append(ends[nodeKey(cs[len(cs)-1])], i)
		}

		merged := false
		for key, idxs := range ends {
			if len(idxs) != 2 || idxs[0] == idxs[1] {
				continue
			}
			i, j := idxs[0], idxs[1]
			if work[i] == nil || work[j] == nil {
				continue
			}
			work[i] = joinAt(work[i], work[j], key)
			work[j] = nil
			merged = true
			break
		}
		if !merged {
			break
		}
	}

	var out []*geom.LineString
	for _, cs := range work {
		if cs != nil {
			out = append(out, NewLine(cs))
		}
	}
	return out
}

// joinAt fuses two coordinate runs at the shared endpoint identified by key,
// orienting each run so the shared node sits in the middle.
func joinAt(a, b []geom.Coord, key string) []geom.Coord {
	if nodeKey(a[0]) == key {
		a = reverseCoords(a)
	}
	if nodeKey(b[len(b)-1]) == key {
		b = reverseCoords(b)
	}
	out := make([]geom.Coord, 0, len(a)+len(b)-1)
	out = append(out, a...)
	// Drop b's first point if it duplicates the junction.
	if Distance(a[len(a)-1], b[0]) < mergeTolDeg {
		out = append(out, b[1:]...)
	} else {
		out = append(out, b...)
	}
	return out
}

func reverseCoords(cs []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(cs))
	for i, c := range cs {
		out[len(cs)-1-i] = c
	}
	return out
}

// MergeByName groups polylines by their tag and merges each group. Used for
// corridor rescue where candidates from the fallback source arrive as
// individually named ways.
func MergeByName(tagged map[string][]*geom.LineString) map[string][]*geom.LineString {
	out := make(map[string][]*geom.LineString, len(tagged))
	for name, lines := range tagged {
		out[name] = Merge(lines)
	}
	return out
}
