package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

type CreditHandler struct {
	svc services.CreditService
}

func NewCreditHandler(svc services.CreditService) *CreditHandler {
	return &CreditHandler{svc: svc}
}

func (h *CreditHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	row, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type GrantCreditsRequest struct {
	UserID  string `json:"user_id" binding:"required,uuid"`
	Credits int    `json:"credits" binding:"required,min=1,max=1000"`
}

// Grant adds credits to another user's account. Admin only.
func (h *CreditHandler) Grant(c *gin.Context) {
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CreditHandler.Grant", "invalid request body", err))
		return
	}

	row, err := h.svc.Grant(c.Request.Context(), req.UserID, req.Credits)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
