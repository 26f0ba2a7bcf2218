package byterange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   Range
		ok     bool
	}{
		{"bytes=100-199", 1000, Range{100, 199}, true},
		{"bytes=900-", 1000, Range{900, 999}, true},
		{"bytes=-100", 1000, Range{900, 999}, true},
		{"bytes=990-2000", 1000, Range{990, 999}, true},
		{"bytes=1000-1001", 1000, Range{}, false},
		{"bytes=5-1", 1000, Range{}, false},
		{"bytes=0-1,5-6", 1000, Range{}, false},
		{"items=0-1", 1000, Range{}, false},
		{"bytes=100-199", -1, Range{100, 199}, true},
		{"bytes=100-", -1, Range{}, false},
		{"bytes=-100", -1, Range{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := Parse(tt.header, tt.size)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: 100, End: 199}
	assert.Equal(t, int64(100), r.Length())
	assert.Equal(t, "bytes 100-199/1000", r.ContentRange(1000))
	assert.Equal(t, "bytes 100-199/*", r.ContentRange(-1))
	assert.False(t, r.Covers(1000))
	assert.True(t, Range{Start: 0, End: 999}.Covers(1000))
	assert.False(t, Range{Start: 0, End: 999}.Covers(-1))
}
