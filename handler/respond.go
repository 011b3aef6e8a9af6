package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabflow/auth"
	"collabflow/chatroom"
	"collabflow/contract"
	"collabflow/middleware"
	"collabflow/quotation"
)

// fail maps domain errors onto HTTP statuses and renders a JSON error body.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, contract.ErrNotFound),
		errors.Is(err, chatroom.ErrNotFound),
		errors.Is(err, quotation.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chatroom.ErrForbidden),
		errors.Is(err, quotation.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, contract.ErrAlreadySigned),
		errors.Is(err, contract.ErrDuplicateTerms),
		errors.Is(err, contract.ErrIdempotencyKeyReuse),
		errors.Is(err, quotation.ErrBadStatus),
		errors.Is(err, auth.ErrDuplicateEmail):
		status = http.StatusConflict
	case errors.Is(err, contract.ErrInvalidRate),
		errors.Is(err, contract.ErrMissingSignature),
		errors.Is(err, contract.ErrMissingField),
		errors.Is(err, chatroom.ErrInvalidPair),
		errors.Is(err, auth.ErrWeakPassword):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"request_id", middleware.GetRequestID(c),
			"path", c.Request.URL.Path,
		)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
