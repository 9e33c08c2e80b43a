package shared

import "fmt"

// messages 接口错误提示，按 key 查找
var messages = map[string]string{
	"error.bad_request":                "invalid request parameters",
	"error.unauthorized":               "unauthorized",
	"error.forbidden":                  "permission denied",
	"error.not_found":                  "resource not found",
	"error.internal":                   "internal server error",
	"error.jwt_secret_missing":         "token validation is not configured",
	"error.auth_header_missing":        "missing authorization header",
	"error.auth_header_invalid":        "malformed authorization header",
	"error.token_invalid":              "invalid token",
	"error.token_revoked":              "token has been revoked",
	"error.user_disabled":              "account disabled",
	"error.staff_disabled":             "staff account disabled",
	"error.user_id_invalid":            "invalid user id",
	"error.user_id_type_invalid":       "invalid user id type",
	"error.staff_id_invalid":           "invalid staff id",
	"error.staff_id_type_invalid":      "invalid staff id type",
	"error.business_id_invalid":        "invalid business id",
	"error.card_id_invalid":            "invalid stamp card id",
	"error.transaction_id_invalid":     "invalid transaction id",
	"error.transaction_status_invalid": "invalid transaction status",
	"error.stamp_fetch_failed":         "failed to load stamp data",
	"error.stamp_update_failed":        "failed to record stamp",
	"error.stamp_commit_conflict":      "stamp card is busy, please retry",
	"error.stamp_txn_not_found":        "stamp transaction not found",
	"error.stamp_txn_not_pending":      "stamp transaction already reviewed",
	"error.redemption_fetch_failed":    "failed to load redemption data",
	"error.redemption_update_failed":   "failed to update redemption",
	"error.redemption_code_failed":     "failed to generate redemption code",
	"error.verification_type_invalid":  "verification type must be qr, pin or legacy",
	"error.staff_not_found":            "staff not found",
	"error.rate_limit_unavailable":     "rate limiter unavailable",
	"error.rate_limited":               "too many requests, retry in %d seconds",
}

// Message 按 key 返回提示文案，未登记的 key 原样返回
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}

// Messagef 带参数的提示文案
func Messagef(key string, args ...interface{}) string {
	return fmt.Sprintf(Message(key), args...)
}
