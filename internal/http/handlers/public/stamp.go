package public

import (
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ScanStampRequest 扫码集点请求
type ScanStampRequest struct {
	BusinessID uint `json:"business_id" binding:"required"`
}

// ScanStamp 顾客扫码集点
// 策略拒绝同样返回 status_code=0，由 data.success / data.error 区分
func (h *Handler) ScanStamp(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ScanStampRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BusinessID == 0 {
		respondError(c, response.CodeBadRequest, "error.business_id_invalid", nil)
		return
	}

	result, err := h.StampService.AwardStamp(c.Request.Context(), service.AwardStampInput{
		CustomerID: uid,
		BusinessID: req.BusinessID,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.StampErrorRules, response.CodeInternal, "error.stamp_update_failed")
		return
	}
	response.Success(c, result)
}

// ListStampCards 顾客集点卡列表
func (h *Handler) ListStampCards(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePageQuery(c)
	cards, total, err := h.StampService.ListCards(uid, page, pageSize)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.StampErrorRules, response.CodeInternal, "error.stamp_fetch_failed")
		return
	}
	response.SuccessWithPage(c, cards, handlershared.BuildPagination(page, pageSize, total))
}
