package shared

import (
	"errors"

	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 定义业务错误到接口错误响应的映射关系。
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// RespondWithMappedError 命中映射规则时返回对应响应，否则按兜底错误处理并记录原始错误。
func RespondWithMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatMappedErrors 合并多组映射规则
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

// StampErrorRules 集点相关基础设施错误
var StampErrorRules = []MappedError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrStampCommitConflict, Code: response.CodeConflict, Key: "error.stamp_commit_conflict"},
	{Target: service.ErrStampTxnNotFound, Code: response.CodeNotFound, Key: "error.stamp_txn_not_found"},
	{Target: service.ErrStampTxnNotPending, Code: response.CodeConflict, Key: "error.stamp_txn_not_pending"},
}

// RedemptionErrorRules 兑换相关基础设施错误
var RedemptionErrorRules = []MappedError{
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrRedemptionCodeFailed, Code: response.CodeInternal, Key: "error.redemption_code_failed"},
}
