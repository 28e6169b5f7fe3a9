package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// renderJSON writes v with a strong ETag derived from the encoded body and
// answers 304 when the client already holds that representation.
func (h *Handler) renderJSON(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Errorw("Failed to encode response", "error", err)
		writeError(c, http.StatusInternalServerError, "Error encoding response: "+sanitize(err.Error()))
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
