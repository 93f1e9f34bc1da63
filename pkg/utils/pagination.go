package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Pagination struct {
	Page   int    `json:"page"`
	Size   int    `json:"size"`
	Status string `json:"status,omitempty"`
}

const (
	defaultSize = 10
	maxSize     = 100
)

func (p *Pagination) SetSize(querySize string) error {
	if querySize == "" {
		p.Size = defaultSize
		return nil
	}
	size, err := strconv.Atoi(querySize)
	if err != nil {
		return fmt.Errorf("invalid size: %w", err)
	}
	if size < 1 || size > maxSize {
		return fmt.Errorf("size must be within 1..%d", maxSize)
	}
	p.Size = size
	return nil
}

func (p *Pagination) SetPage(queryPage string) error {
	if queryPage == "" {
		p.Page = 1
		return nil
	}
	page, err := strconv.Atoi(queryPage)
	if err != nil {
		return fmt.Errorf("invalid page: %w", err)
	}
	if page < 1 {
		return fmt.Errorf("page must be positive")
	}
	p.Page = page
	return nil
}

func (p *Pagination) GetOffset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

func (p *Pagination) GetLimit() int {
	return p.Size
}

func GetPaginationFromCtx(ctx echo.Context) (*Pagination, error) {
	p := &Pagination{Status: ctx.QueryParam("status")}

	if err := p.SetSize(ctx.QueryParam("size")); err != nil {
		return nil, err
	}
	if err := p.SetPage(ctx.QueryParam("page")); err != nil {
		return nil, err
	}
	return p, nil
}

func GetTotalPages(totalCount int, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

func GetHasMore(currPage, totalCount, pageSize int) bool {
	return currPage*pageSize < totalCount
}
