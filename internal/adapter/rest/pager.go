package rest

import (
	"context"
	"errors"
	"iter"
	"strconv"

	"kaiheila/internal/domain"
)

// ErrPagerDone is returned by Pager.Next when every page has been consumed.
var ErrPagerDone = errors.New("pager: no more items")

// Pager lazily walks a paginated list endpoint. The first page is requested
// without "page"; page_total and page_size from its meta drive the remaining
// requests for pages 2..page_total. A page is only fetched once every item of
// the previous page has been returned.
//
// A Pager is not safe for concurrent use; independent pagers are.
type Pager[T any] struct {
	c       *Client
	path    string
	filters Params

	buf       []T
	started   bool
	meta      domain.PageMeta
	nextPage  int
	pageTotal int
	pageSize  int
	err       error
}

// NewPager returns a pager over path. filters are copied and sent with every
// page request.
func NewPager[T any](c *Client, path string, filters Params) *Pager[T] {
	return &Pager[T]{
		c:       c,
		path:    path,
		filters: filters.clone(),
	}
}

// Next returns the next item. It returns ErrPagerDone after the last item.
// Once a page request fails, Next keeps returning that error without issuing
// further requests.
func (p *Pager[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for len(p.buf) == 0 {
		if p.err != nil {
			return zero, p.err
		}
		p.fetch(ctx)
	}
	item := p.buf[0]
	p.buf[0] = zero
	p.buf = p.buf[1:]
	return item, nil
}

// All adapts the pager to a range-over-func sequence. Iteration ends after the
// last item or after yielding the first error.
func (p *Pager[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := p.Next(ctx)
			if errors.Is(err, ErrPagerDone) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains the pager into a slice.
func (p *Pager[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range p.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Meta returns the pagination meta of the first page, or the zero value if no
// page has been fetched yet.
func (p *Pager[T]) Meta() domain.PageMeta {
	return p.meta
}

func (p *Pager[T]) fetch(ctx context.Context) {
	query := p.filters.clone()
	if p.started {
		if p.nextPage > p.pageTotal {
			p.err = ErrPagerDone
			return
		}
		query = query.
			Add("page", strconv.Itoa(p.nextPage)).
			Add("page_size", strconv.Itoa(p.pageSize))
	}

	page, err := Execute[domain.PagedList[T]](ctx, p.c, Request{Path: p.path, Query: query})
	if err != nil {
		p.err = err
		return
	}

	if !p.started {
		p.started = true
		p.meta = page.Meta
		p.pageTotal = page.Meta.PageTotal
		p.pageSize = page.Meta.PageSize
		p.nextPage = 2
	} else {
		p.nextPage++
	}
	p.buf = page.Items
}
