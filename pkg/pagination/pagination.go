package pagination

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// maxOffset keeps Offset+Limit from overflowing.
	maxOffset = math.MaxInt - MaxLimit
)

// Params holds paging and sorting parameters extracted from a request.
// Page/page_size (1-based) take precedence over limit/offset.
type Params struct {
	Limit  int
	Offset int
	Sort   string
	Desc   bool
}

// FromContext reads page, page_size (or pageSize), limit, offset, sort and
// order from the query string.
func FromContext(c echo.Context) Params {
	var p Params

	size := firstInt(c, "page_size", "pageSize")
	page := firstInt(c, "page")
	if page > 0 {
		p.Limit = clampLimit(size)
		if page-1 > maxOffset/p.Limit {
			p.Offset = maxOffset
		} else {
			p.Offset = (page - 1) * p.Limit
		}
	} else {
		p.Limit = clampLimit(firstInt(c, "limit", "pageSize", "page_size"))
		p.Offset = min(max(firstInt(c, "offset"), 0), maxOffset)
	}

	p.Sort = strings.TrimSpace(c.QueryParam("sort"))
	if strings.HasPrefix(p.Sort, "-") {
		p.Sort = p.Sort[1:]
		p.Desc = true
	}
	switch strings.ToLower(c.QueryParam("order")) {
	case "desc":
		p.Desc = true
	case "asc":
		p.Desc = false
	}
	return p
}

func firstInt(c echo.Context, names ...string) int {
	for _, name := range names {
		if v, err := strconv.Atoi(c.QueryParam(name)); err == nil && v != 0 {
			return v
		}
	}
	return 0
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Page returns the 1-based page number the params point at.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

// OrderBy builds an ORDER BY clause from a whitelist mapping sort keys to
// columns. Unknown or empty keys fall back to def. The id column is always
// appended so that paging over equal keys is stable.
func (p Params) OrderBy(columns map[string]string, def string, defDesc bool, idColumn string) string {
	col, ok := columns[p.Sort]
	desc := p.Desc
	if !ok {
		col, desc = def, defDesc
		if p.Sort == "" && p.Desc {
			desc = true
		}
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if idColumn == "" || idColumn == col {
		return fmt.Sprintf("ORDER BY %s %s", col, dir)
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", col, dir, idColumn, dir)
}

// Window returns the [start, end) bounds of the page within n items.
func (p Params) Window(n int) (int, int) {
	start := min(p.Offset, n)
	end := min(start+p.Limit, n)
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Response wraps a paginated API response.
type Response struct {
	Data     any  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Limit    int  `json:"limit"`
	Offset   int  `json:"offset"`
	HasMore  bool `json:"has_more"`
}

func NewResponse(data any, total int, p Params) *Response {
	return &Response{
		Data:     data,
		Total:    total,
		Page:     p.Page(),
		PageSize: p.Limit,
		Limit:    p.Limit,
		Offset:   p.Offset,
		HasMore:  p.HasNext(total),
	}
}
