package paging

import (
	"github.com/gofiber/fiber/v2"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// FromQuery: page_index (1 tabanlı) ve page_size parametrelerini okur,
// sınırların dışındaki değerleri reddeder.
func FromQuery(c *fiber.Ctx) (pageIndex, pageSize int, err error) {
	pageIndex = c.QueryInt("page_index", 1)
	pageSize = c.QueryInt("page_size", DefaultPageSize)

	if pageIndex < 1 || pageSize < 1 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Sayfalama parametreleri geçersiz")
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return pageIndex, pageSize, nil
}

func Offset(pageIndex, pageSize int) int {
	return (pageIndex - 1) * pageSize
}
