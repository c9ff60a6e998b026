package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeta(t *testing.T) {
	cases := []struct {
		total       int64
		page, limit int
		pages       int
		showing     string
	}{
		{0, 1, 20, 0, "0 of 0"},
		{5, 1, 20, 1, "1-5 of 5"},
		{45, 2, 20, 3, "21-40 of 45"},
		{45, 3, 20, 3, "41-45 of 45"},
		{45, 4, 20, 3, "0 of 45"},
	}
	for _, c := range cases {
		pages, showing := Meta(c.total, c.page, c.limit)
		assert.Equal(t, c.pages, pages, "total=%d page=%d", c.total, c.page)
		assert.Equal(t, c.showing, showing, "total=%d page=%d", c.total, c.page)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(0, 20))
	assert.Equal(t, 0, Offset(1, 20))
	assert.Equal(t, 40, Offset(3, 20))
}
