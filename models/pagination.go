package models

import (
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Pagination struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

type PageInfo struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalCount  int64 `json:"total_count"`
	HasNextPage bool  `json:"has_next_page"`
}

type PaginatedList[T any] struct {
	Items    []*T     `json:"items"`
	PageInfo PageInfo `json:"page_info"`
}

func (p Pagination) normalized() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// paginate counts the filtered query, then loads one page of it.
func paginate[T any](dbCtx *gorm.DB, p Pagination, preloads ...string) (*PaginatedList[T], error) {
	p = p.normalized()

	var count int64
	if err := dbCtx.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, err
	}

	query := dbCtx.Session(&gorm.Session{})
	for _, field := range preloads {
		query = query.Preload(field)
	}
	items := make([]*T, 0)
	if err := query.Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &PaginatedList[T]{
		Items: items,
		PageInfo: PageInfo{
			Page:        p.Page,
			PageSize:    p.PageSize,
			TotalCount:  count,
			HasNextPage: int64(p.Page*p.PageSize) < count,
		},
	}, nil
}
