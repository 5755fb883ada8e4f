package utils

const (
	// DefaultPageSize is used when a caller does not ask for a size
	DefaultPageSize = 20
	// MaxPageSize caps what a single listing request may fetch
	MaxPageSize = 100
)

// PaginationParams holds zero-based paging for catalogue queries
type PaginationParams struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

// GetPaginationParams clamps page and size.
// Default: page=0, size=DefaultPageSize, size never above MaxPageSize
func GetPaginationParams(page, size int) PaginationParams {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return PaginationParams{Page: page, Size: size}
}

// TotalPages derives the page count when the backend only reports a total
func TotalPages(total int64, size int) int {
	if total <= 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}
