package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/models"
)

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), models.ErrorResponse{
		Error:   string(apperrors.KindOf(err)),
		Message: apperrors.Message(err),
	})
}

func badRequest(c *gin.Context, format string, args ...any) {
	respondError(c, apperrors.Validation(format, args...))
}

// pathID reads a positive integer path parameter. It writes the 400 response
// itself and returns false when the parameter is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "%s must be a positive integer", name)
		return 0, false
	}
	return id, true
}

func requiredQueryInt64(c *gin.Context, name string) (int64, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		badRequest(c, "query parameter %s is required", name)
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "query parameter %s must be a positive integer", name)
		return 0, false
	}
	return v, true
}
