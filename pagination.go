package gallery

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Normalize replaces non-positive values with the defaults and applies
// maxLimit when it is positive.
func (p PageRequest) Normalize(maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of rows skipped before this page. ok is false when
// the offset does not fit in an int, in which case the page is empty.
func (p PageRequest) Offset() (offset int, ok bool) {
	if p.Page < 1 || p.Limit < 1 {
		return 0, true
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return 0, false
	}
	return (p.Page - 1) * p.Limit, true
}

// TotalPages is ceil(total/limit). It is zero when there are no items.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	pages := total / l
	if total%l != 0 {
		pages++
	}
	return int(pages)
}

func newImagePage(req PageRequest, images []ImageView, total int64) ImagePage {
	totalPages := TotalPages(total, req.Limit)

	nextPage := req.Page
	if nextPage < math.MaxInt {
		nextPage++
	}

	if images == nil {
		images = []ImageView{}
	}

	return ImagePage{
		Images:          images,
		CurrentPage:     req.Page,
		TotalPages:      totalPages,
		HasPreviousPage: req.Page > 1,
		HasNextPage:     req.Page < totalPages,
		PrevPage:        req.Page - 1,
		NextPage:        nextPage,
		Limit:           req.Limit,
		TotalItems:      total,
	}
}
