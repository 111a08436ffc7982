package gallery_test

import (
	"math"
	"testing"

	"github.com/sagarc03/gallery"
	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       gallery.PageRequest
		maxLimit int
		want     gallery.PageRequest
	}{
		{name: "zero values", in: gallery.PageRequest{}, want: gallery.PageRequest{Page: 1, Limit: 10}},
		{name: "negative values", in: gallery.PageRequest{Page: -3, Limit: -1}, want: gallery.PageRequest{Page: 1, Limit: 10}},
		{name: "kept", in: gallery.PageRequest{Page: 4, Limit: 25}, want: gallery.PageRequest{Page: 4, Limit: 25}},
		{name: "capped", in: gallery.PageRequest{Page: 2, Limit: 500}, maxLimit: 100, want: gallery.PageRequest{Page: 2, Limit: 100}},
		{name: "no cap", in: gallery.PageRequest{Page: 2, Limit: 500}, want: gallery.PageRequest{Page: 2, Limit: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(tt.maxLimit))
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	tests := []struct {
		name   string
		in     gallery.PageRequest
		want   int
		wantOK bool
	}{
		{name: "first page", in: gallery.PageRequest{Page: 1, Limit: 10}, want: 0, wantOK: true},
		{name: "third page", in: gallery.PageRequest{Page: 3, Limit: 10}, want: 20, wantOK: true},
		{name: "limit one", in: gallery.PageRequest{Page: 8, Limit: 1}, want: 7, wantOK: true},
		{name: "huge limit first page", in: gallery.PageRequest{Page: 1, Limit: math.MaxInt}, want: 0, wantOK: true},
		{name: "largest page that fits", in: gallery.PageRequest{Page: math.MaxInt/10 + 1, Limit: 10}, want: math.MaxInt / 10 * 10, wantOK: true},
		{name: "page overflows", in: gallery.PageRequest{Page: math.MaxInt/10 + 2, Limit: 10}, wantOK: false},
		{name: "huge page and limit", in: gallery.PageRequest{Page: math.MaxInt, Limit: math.MaxInt}, wantOK: false},
		{name: "second page of huge limit", in: gallery.PageRequest{Page: 2, Limit: math.MaxInt}, want: math.MaxInt, wantOK: true},
		{name: "third page of huge limit", in: gallery.PageRequest{Page: 3, Limit: math.MaxInt}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, ok := tt.in.Offset()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, offset)
				assert.GreaterOrEqual(t, offset, 0)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{total: 0, limit: 10, want: 0},
		{total: 1, limit: 10, want: 1},
		{total: 10, limit: 10, want: 1},
		{total: 11, limit: 10, want: 2},
		{total: 25, limit: 5, want: 5},
		{total: 5, limit: 0, want: 0},
		{total: 5, limit: math.MaxInt, want: 1},
		{total: math.MaxInt64, limit: math.MaxInt, want: 1},
		{total: math.MaxInt64, limit: 1, want: math.MaxInt},
		{total: math.MaxInt64, limit: 2, want: math.MaxInt/2 + 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, gallery.TotalPages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}
}
