package service

import "github.com/stampcard-next/internal/constants"

var outcomeMessages = map[string]string{
	constants.StampErrInvalidBusiness:      "This business is not available.",
	constants.StampErrNoActiveProgram:      "This business has no active loyalty program.",
	constants.StampErrShopClosed:           "The shop is closed today.",
	constants.StampErrOutsideHours:         "Stamps can only be collected during opening hours.",
	constants.StampErrTooSoon:              "Please wait before scanning again.",
	constants.StampErrDailyLimit:           "Daily stamp limit reached.",
	constants.RedemptionErrCardNotComplete: "The stamp card is not complete yet.",
	constants.RedemptionErrModeNotEnabled:  "This verification method is not enabled.",
	constants.RedemptionErrInvalidCode:     "Invalid redemption code.",
	constants.RedemptionErrCodeExpired:     "The redemption code has expired.",
	constants.RedemptionErrLockedOut:       "Too many failed attempts, please try again later.",
	constants.RedemptionErrAlreadyRedeemed: "This reward has already been redeemed.",
}

// OutcomeMessage 返回结果码对应的提示文案
func OutcomeMessage(code string) string {
	if msg, ok := outcomeMessages[code]; ok {
		return msg
	}
	return code
}
