package staff

import (
	"strings"

	"github.com/stampcard-next/internal/constants"
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListStampTransactions 商户集点流水，可按状态筛选
func (h *Handler) ListStampTransactions(c *gin.Context) {
	_, businessID, ok := getStaffIdentity(c)
	if !ok {
		return
	}
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", constants.StampTxnStatusPending, constants.StampTxnStatusVerified, constants.StampTxnStatusRejected:
	default:
		handlershared.RespondError(c, response.CodeBadRequest, "error.transaction_status_invalid", nil)
		return
	}
	page, pageSize := handlershared.ParsePageQuery(c)

	rows, total, err := h.StampService.ListTransactions(service.ListTransactionsInput{
		BusinessID: businessID,
		Status:     status,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.StampErrorRules, response.CodeInternal, "error.stamp_fetch_failed")
		return
	}
	response.SuccessWithPage(c, rows, handlershared.BuildPagination(page, pageSize, total))
}

// ApproveStampTransaction 审核通过待确认集点
func (h *Handler) ApproveStampTransaction(c *gin.Context) {
	input, ok := buildReviewInput(c)
	if !ok {
		return
	}
	result, err := h.StampService.ApprovePending(c.Request.Context(), input)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.StampErrorRules, response.CodeInternal, "error.stamp_update_failed")
		return
	}
	response.Success(c, result)
}

// RejectStampTransaction 驳回待确认集点
func (h *Handler) RejectStampTransaction(c *gin.Context) {
	input, ok := buildReviewInput(c)
	if !ok {
		return
	}
	if err := h.StampService.RejectPending(c.Request.Context(), input); err != nil {
		handlershared.RespondWithMappedError(c, err, handlershared.StampErrorRules, response.CodeInternal, "error.stamp_update_failed")
		return
	}
	response.Success(c, gin.H{"transaction_id": input.TransactionID, "status": constants.StampTxnStatusRejected})
}

func buildReviewInput(c *gin.Context) (service.ReviewStampInput, bool) {
	staffID, businessID, ok := getStaffIdentity(c)
	if !ok {
		return service.ReviewStampInput{}, false
	}
	txnID, ok := handlershared.ParseUintParam(c, "id", "error.transaction_id_invalid")
	if !ok {
		return service.ReviewStampInput{}, false
	}
	return service.ReviewStampInput{
		TransactionID: txnID,
		BusinessID:    businessID,
		StaffID:       &staffID,
	}, true
}
