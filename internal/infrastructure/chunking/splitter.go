package chunking

import "strings"

// Splitter produces overlapping text windows of at most ChunkSize
// runes. Cuts prefer natural boundaries inside the window: paragraph
// break, then sentence end, then word break, then a hard cut at the
// window edge. Each window after the first starts exactly Overlap runes
// before the previous cut, so dropping the duplicated prefix of every
// window after the first reconstructs the input.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	start := 0
	for {
		end := start + s.ChunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}

		cut := s.cutPoint(runes, start, end)
		out = append(out, string(runes[start:cut]))
		start = cut - s.Overlap
	}
}

// cutPoint picks the best split position in (start+Overlap, end]. The
// lower bound keeps every step strictly forward regardless of where a
// boundary lands.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	lowest := start + s.Overlap + 1

	for _, boundary := range []struct {
		separator string
		keep      int // runes of the separator kept in the left window
	}{
		{"\n\n", 2},
		{"\n", 1},
		{". ", 2},
		{"! ", 2},
		{"? ", 2},
		{" ", 1},
	} {
		if cut := lastBoundary(runes, start, end, boundary.separator, boundary.keep); cut >= lowest {
			return cut
		}
	}
	return end
}

func lastBoundary(runes []rune, start, end int, separator string, keep int) int {
	sep := []rune(separator)
	for i := end - keep; i >= start; i-- {
		if matchAt(runes, i, sep) {
			return i + keep
		}
	}
	return -1
}

func matchAt(runes []rune, at int, sep []rune) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}
