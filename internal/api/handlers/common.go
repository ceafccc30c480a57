package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// writeError renders err for the client and attaches the full chain to the
// context, where RequestLogger picks it up.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := utils.HTTPStatus(err)
	resp := APIError{Code: utils.CodeOf(err), Message: http.StatusText(status)}
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		resp.Message = ae.Message
	}
	c.AbortWithStatusJSON(status, resp)
}

func requireUserID(c *gin.Context) (string, bool) {
	if id := c.GetString("user_id"); id != "" {
		return id, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
