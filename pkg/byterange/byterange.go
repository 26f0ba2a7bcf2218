// Package byterange resolves single-range "bytes=" request headers against
// a body whose origin ignored them.
package byterange

import (
	"strconv"
	"strings"
)

// Range is an inclusive byte interval.
type Range struct {
	Start, End int64
}

// Parse resolves header against a body of size bytes. A negative size means
// the length is unknown; only fully bounded ranges resolve then.
// Multi-range, malformed and unsatisfiable requests report false.
func Parse(header string, size int64) (Range, bool) {
	set, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(set, ",") || size == 0 {
		return Range{}, false
	}
	first, last, ok := strings.Cut(strings.TrimSpace(set), "-")
	if !ok {
		return Range{}, false
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 || size < 0 {
			return Range{}, false
		}
		return Range{Start: max(size-n, 0), End: size - 1}, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || (size > 0 && start >= size) {
		return Range{}, false
	}
	if last == "" {
		if size < 0 {
			return Range{}, false
		}
		return Range{Start: start, End: size - 1}, true
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return Range{}, false
	}
	if size > 0 {
		end = min(end, size-1)
	}
	return Range{Start: start, End: end}, true
}

// Length is the number of bytes in r.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// Covers reports whether r spans a whole body of size bytes.
func (r Range) Covers(size int64) bool {
	return size >= 0 && r.Start == 0 && r.Length() >= size
}

// ContentRange renders the Content-Range value for r. An unknown size is
// written as "*".
func (r Range) ContentRange(size int64) string {
	total := "*"
	if size >= 0 {
		total = strconv.FormatInt(size, 10)
	}
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) + "/" + total
}
