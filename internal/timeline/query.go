package timeline

import (
	"context"

	"github.com/pders01/roster/internal/storage"
)

// DefaultPerPage applies when a query carries no usable page size.
const DefaultPerPage = 12

type Query struct {
	Page    int
	PerPage int
	Author  string
	Tag     string
	// DuringEmploymentOnly only applies together with Author.
	DuringEmploymentOnly bool
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Articles   []storage.Article `json:"articles"`
	Pagination Pagination        `json:"pagination"`
}

// Filter returns the articles matching q's author, employment and tag
// filters in their original order.
func Filter(articles []storage.Article, q Query) []storage.Article {
	out := make([]storage.Article, 0, len(articles))
	for _, a := range articles {
		if q.Author != "" {
			if a.Author != q.Author {
				continue
			}
			if q.DuringEmploymentOnly && !a.IsDuringEmployment {
				continue
			}
		}
		if q.Tag != "" && !a.HasTag(q.Tag) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Paginate filters articles and cuts out the requested page. Out of range
// pages are clamped into [1, totalPages].
func Paginate(articles []storage.Article, q Query) Page {
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}

	filtered := Filter(articles, q)
	total := len(filtered)

	totalPages := (total + q.PerPage - 1) / q.PerPage
	if totalPages < 1 {
		totalPages = 1
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * q.PerPage
	end := start + q.PerPage
	if end > total {
		end = total
	}

	return Page{
		Articles: filtered[start:end],
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			PerPage:    q.PerPage,
			TotalPages: totalPages,
		},
	}
}

// Page answers q from the current aggregate.
func (c *Cache) Page(ctx context.Context, q Query) (Page, error) {
	articles, err := c.All(ctx)
	if err != nil {
		return Page{}, err
	}
	return Paginate(articles, q), nil
}
