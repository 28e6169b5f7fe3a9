package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/stevemurr/docstore-api/store"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// sanitize flattens a message onto one line before it reaches a client or log.
func sanitize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (h *Handler) handleInvalidInput(c *gin.Context, err error) {
	msg := sanitize(err.Error())
	h.logger.Infow("Invalid input error",
		"error", msg,
		"path", c.Request.URL.Path,
	)
	writeError(c, http.StatusBadRequest, msg)
}

// handleStoreError maps the store error taxonomy onto HTTP statuses.
// kind is "collection" or "document" and only shapes the message.
func (h *Handler) handleStoreError(c *gin.Context, err error, kind, collection, id string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		h.handleInvalidInput(c, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, fmt.Sprintf("Document not found: %s", sanitize(id)))
	default:
		msg := sanitize(err.Error())
		h.logger.Errorw("Internal server error",
			"error", msg,
			"collection", collection,
			"document", id,
		)
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("Error fetching %s: %s", kind, msg))
	}
}
