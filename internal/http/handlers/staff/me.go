package staff

import (
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	"github.com/stampcard-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetCurrentStaff 当前店员信息
func (h *Handler) GetCurrentStaff(c *gin.Context) {
	staffID, _, ok := getStaffIdentity(c)
	if !ok {
		return
	}
	staff, err := h.StaffRepo.GetByID(staffID)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	if staff == nil {
		handlershared.RespondError(c, response.CodeNotFound, "error.staff_not_found", nil)
		return
	}
	response.Success(c, staff)
}
