package staff

import (
	"errors"

	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// VerifyRedemptionRequest 核销请求
type VerifyRedemptionRequest struct {
	VerificationType string `json:"verification_type" binding:"required"`
	Code             string `json:"code"`
}

// VerifyRedemption 店员核销兑换凭证，商户取自店员令牌
func (h *Handler) VerifyRedemption(c *gin.Context) {
	staffID, businessID, ok := getStaffIdentity(c)
	if !ok {
		return
	}
	var req VerifyRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlershared.RespondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	channel, valid := service.ParseVerificationChannel(req.VerificationType)
	if !valid {
		handlershared.RespondError(c, response.CodeBadRequest, "error.verification_type_invalid", nil)
		return
	}

	result, err := h.RedemptionService.Verify(c.Request.Context(), service.VerifyInput{
		BusinessID:       businessID,
		StaffID:          staffID,
		VerificationType: string(channel),
		Code:             req.Code,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			handlershared.RespondError(c, response.CodeBadRequest, "error.verification_type_invalid", nil)
			return
		}
		handlershared.RespondWithMappedError(c, err, handlershared.RedemptionErrorRules, response.CodeInternal, "error.redemption_update_failed")
		return
	}
	response.Success(c, result)
}
