/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"encoding/json"
	"fmt"
)

// Direction is an ordering direction for list queries.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy names a column and the direction to sort it by.
type OrderBy struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction,omitempty"`
}

// ListOptions carries ordering and window bounds for a list query. A zero
// Limit means "use the engine default"; the engine clamps any limit to its
// configured maximum.
type ListOptions struct {
	OrderBys []OrderBy `json:"order_bys,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
}

// NewListOptions constructs list options with a single order-by.
func NewListOptions(limit, offset int, column string, direction Direction) *ListOptions {
	opts := &ListOptions{Limit: limit, Offset: offset}
	if column != "" {
		opts.OrderBys = []OrderBy{{Column: column, Direction: direction}}
	}
	return opts
}

// PaginationMetadata summarizes one page of an offset-windowed list result.
type PaginationMetadata struct {
	CurrentPage int64 `json:"current_page"`
	PerPage     int64 `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

// NewPaginationMetadata derives page metadata from a total item count and the
// effective limit/offset the query ran with. TotalPages is never below 1, and
// CurrentPage is clamped into [1, TotalPages]: asking for a page past the end
// yields the last page's metadata, not an error.
func NewPaginationMetadata(totalItems int64, limit, offset int) PaginationMetadata {
	if limit < 1 {
		limit = 1
	}
	if offset < 0 {
		offset = 0
	}
	perPage := int64(limit)
	totalPages := (totalItems + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page := int64(offset)/perPage + 1
	if page > totalPages {
		page = totalPages
	}
	return PaginationMetadata{
		CurrentPage: page,
		PerPage:     perPage,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
	}
}

// HasNext reports whether a page follows the current one.
func (m PaginationMetadata) HasNext() bool { return m.CurrentPage < m.TotalPages }

// HasPrev reports whether a page precedes the current one.
func (m PaginationMetadata) HasPrev() bool { return m.CurrentPage > 1 }

// Pagination is the caller-facing envelope: a tagged variant that is either
// offset-windowed (page counts) or cursor-windowed (opaque continuation
// tokens). Exactly one variant is set.
type Pagination struct {
	Offset *OffsetPagination
	Cursor *CursorPagination

	OrderBy        string `json:"order_by,omitempty"`
	OrderDirection string `json:"order_direction,omitempty"`
}

// OffsetPagination is the page-counted pagination variant.
type OffsetPagination struct {
	CurrentPage int64 `json:"current_page"`
	PerPage     int64 `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// CursorPagination is the token-based pagination variant.
type CursorPagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// NewOffsetPagination wraps page metadata in the offset envelope variant.
func NewOffsetPagination(m PaginationMetadata) Pagination {
	return Pagination{Offset: &OffsetPagination{
		CurrentPage: m.CurrentPage,
		PerPage:     m.PerPage,
		TotalItems:  m.TotalItems,
		TotalPages:  m.TotalPages,
		HasNext:     m.HasNext(),
		HasPrev:     m.HasPrev(),
	}}
}

// NewCursorPagination builds the cursor envelope variant.
func NewCursorPagination(next, prev string, hasMore bool) Pagination {
	return Pagination{Cursor: &CursorPagination{
		NextCursor: next,
		PrevCursor: prev,
		HasMore:    hasMore,
	}}
}

// WithOrder records the ordering the page was produced with.
func (p Pagination) WithOrder(column string, direction Direction) Pagination {
	p.OrderBy = column
	p.OrderDirection = string(direction)
	return p
}

type taggedPagination struct {
	Type string `json:"type"`
	*OffsetPagination
	*CursorPagination
	OrderBy        string `json:"order_by,omitempty"`
	OrderDirection string `json:"order_direction,omitempty"`
}

// MarshalJSON renders the envelope as a tagged union:
// {"type":"offset",...} or {"type":"cursor",...}.
func (p Pagination) MarshalJSON() ([]byte, error) {
	switch {
	case p.Offset != nil:
		return json.Marshal(taggedPagination{
			Type:             "offset",
			OffsetPagination: p.Offset,
			OrderBy:          p.OrderBy,
			OrderDirection:   p.OrderDirection,
		})
	case p.Cursor != nil:
		return json.Marshal(taggedPagination{
			Type:             "cursor",
			CursorPagination: p.Cursor,
			OrderBy:          p.OrderBy,
			OrderDirection:   p.OrderDirection,
		})
	default:
		return nil, fmt.Errorf("pagination envelope has no variant set")
	}
}
