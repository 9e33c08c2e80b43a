package public

import (
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// IssueRedemptionCodeRequest 签发兑换码请求，business_id 可选
type IssueRedemptionCodeRequest struct {
	BusinessID uint `json:"business_id"`
}

// IssueRedemptionCode 为已集满的卡签发兑换凭证
func (h *Handler) IssueRedemptionCode(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cardID, ok := handlershared.ParseUintParam(c, "id", "error.card_id_invalid")
	if !ok {
		return
	}
	var req IssueRedemptionCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return
		}
	}

	result, err := h.RedemptionService.IssueCredential(c.Request.Context(), service.IssueCredentialInput{
		CustomerID: uid,
		CardID:     cardID,
		BusinessID: req.BusinessID,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.RedemptionErrorRules, response.CodeInternal, "error.redemption_update_failed")
		return
	}
	response.Success(c, result)
}
