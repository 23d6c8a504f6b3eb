package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/search"
	"github.com/sqlbots/dashboard/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func NewSearchHandler(es *elasticsearch.Client, index string) *SearchHandler {
	return &SearchHandler{ES: es, Index: index}
}

func (h *SearchHandler) SearchTasks(c echo.Context) error {
	if h.ES == nil {
		return fail(c, http.StatusServiceUnavailable, "Search is not available.")
	}

	q := c.QueryParam("q")
	if q == "" {
		return fail(c, http.StatusBadRequest, "Query is required.")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	ctx := c.Request().Context()
	userID := auth.UserID(c)

	total, tasks, err := search.Search(ctx, h.ES, h.Index, userID, q, from, size)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Search failed.")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "total": total, "tasks": tasks})
}
