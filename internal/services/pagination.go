package services

import (
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	SortPoints = "points"
	SortRecent = "recent"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// PageRequest 分页与排序参数，零值表示使用默认值
type PageRequest struct {
	Page    int
	Limit   int
	SortBy  string
	OrderBy string
}

// Pagination 响应中的分页信息
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

func (p *PageRequest) normalize() error {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.SortBy == "" {
		p.SortBy = SortPoints
	}
	if p.OrderBy == "" {
		p.OrderBy = OrderDesc
	}

	var fe fieldErrors
	if p.Page < 1 {
		fe.add("page", "Page must be a positive number")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		fe.add("limit", "Limit must be between 1 and 100")
	}
	if p.SortBy != SortPoints && p.SortBy != SortRecent {
		fe.add("sortBy", "Sort must be one of points, recent")
	}
	if p.OrderBy != OrderAsc && p.OrderBy != OrderDesc {
		fe.add("orderBy", "Order must be one of asc, desc")
	}
	return fe.err()
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

// order 主排序列后跟 id 作为同方向的次级排序，保证分页结果稳定
func (p PageRequest) order(table string) clause.OrderBy {
	col := "points"
	if p.SortBy == SortRecent {
		col = "created_at"
	}
	desc := p.OrderBy == OrderDesc
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Table: table, Name: col}, Desc: desc},
		{Column: clause.Column{Table: table, Name: "id"}, Desc: desc},
	}}
}

// paginate applies order, limit and offset.
func (p PageRequest) paginate(table string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(p.order(table)).Limit(p.Limit).Offset(p.offset())
	}
}

func (p PageRequest) pagination(total int64) Pagination {
	return Pagination{Page: p.Page, TotalPages: totalPages(total, p.Limit)}
}

// beyondEnd reports whether the requested page starts past the last row.
// It compares page numbers instead of offsets so a huge page cannot wrap.
func (p PageRequest) beyondEnd(total int64) bool {
	limit := int64(p.Limit)
	if limit <= 0 {
		return true
	}
	lastPage := (total + limit - 1) / limit
	return int64(p.Page-1) >= lastPage
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
