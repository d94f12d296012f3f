package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationWindows(t *testing.T) {
	first := NewPagination(1, 10, 25)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNextPage)
	assert.False(t, first.HasPrevPage)

	last := NewPagination(3, 10, 25)
	assert.False(t, last.HasNextPage)
	assert.True(t, last.HasPrevPage)

	empty := NewPagination(1, 10, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPrevPage)
}

func TestPageWindowClamps(t *testing.T) {
	page, limit, offset := PageWindow(0, 0, 10, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)

	page, limit, offset = PageWindow(3, 500, 10, 100)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 200, offset)
}

func TestPageWindowCapsHugePages(t *testing.T) {
	page, limit, offset := PageWindow(math.MaxInt, 100, 10, 100)
	assert.Equal(t, 100, limit)
	assert.Equal(t, math.MaxInt32/100+1, page)
	assert.GreaterOrEqual(t, offset, 0)
	assert.LessOrEqual(t, offset, math.MaxInt32)

	page, limit, offset = PageWindow(math.MaxInt/2, math.MaxInt, 50, 0)
	assert.Equal(t, math.MaxInt32, limit)
	assert.Equal(t, 2, page)
	assert.Equal(t, math.MaxInt32, offset)
}

func TestParseVerificationStatus(t *testing.T) {
	cases := map[string]VerificationStatus{
		"pending":   VerificationPending,
		"APPROVED":  VerificationApproved,
		" verified": VerificationApproved,
		"Rejected":  VerificationRejected,
	}
	for raw, want := range cases {
		got, ok := ParseVerificationStatus(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseVerificationStatus("ARCHIVED")
	assert.False(t, ok)
}
