package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit/offset from the query string. The second result
// is false when the caller asked for neither, in which case the whole
// collection should be returned.
func FromContext(c echo.Context) (Params, bool) {
	rawLimit, rawOffset := c.QueryParam("limit"), c.QueryParam("offset")
	if rawLimit == "" && rawOffset == "" {
		return Params{}, false
	}

	limit, _ := strconv.Atoi(rawLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(rawOffset)
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}, true
}

// Window returns the [start, end) bounds of the page within a collection of
// total items.
func (p Params) Window(total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextURL returns u with its limit and offset moved to the following page.
func (p Params) NextURL(u *url.URL) string {
	next := *u
	q := next.Query()
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset+p.Limit))
	next.RawQuery = q.Encode()
	return next.RequestURI()
}
