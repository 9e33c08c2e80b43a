package staff

import (
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// getStaffIdentity 读取鉴权中间件写入的店员与所属商户
func getStaffIdentity(c *gin.Context) (uint, uint, bool) {
	staffID, ok := handlershared.GetContextUintWithKeys(c, handlershared.ContextStaffID, "error.staff_id_invalid", "error.staff_id_type_invalid")
	if !ok {
		return 0, 0, false
	}
	businessID, ok := handlershared.GetContextUintWithKeys(c, handlershared.ContextBusinessID, "error.business_id_invalid", "error.business_id_invalid")
	if !ok {
		return 0, 0, false
	}
	return staffID, businessID, true
}
