package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stevemurr/docstore-api/store"
)

// parsePageQuery reads limit, offset, order_by and order_dir from the query
// string. A parameter that is present must be valid, even when empty.
func parsePageQuery(c *gin.Context) (store.Query, error) {
	q := store.DefaultQuery()

	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, &store.ValidationError{Field: "limit", Value: v, Reason: "must be an integer"}
		}
		q.Limit = n
	}
	if v, ok := c.GetQuery("offset"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, &store.ValidationError{Field: "offset", Value: v, Reason: "must be an integer"}
		}
		q.Offset = n
	}
	if v, ok := c.GetQuery("order_dir"); ok {
		dir, err := store.ParseDirection(v)
		if err != nil {
			return q, err
		}
		q.Direction = dir
	}
	// An empty order_by means no ordering.
	q.OrderBy = c.Query("order_by")

	return q, q.Validate()
}
