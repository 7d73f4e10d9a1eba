package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteError 依 CustomError 寫入錯誤響應，其他錯誤視為 500
func WriteError(c *gin.Context, err error) {
	ce, ok := AsCustomError(err)
	if !ok {
		ce = Wrap(ErrInternalError, err)
	}
	status := ce.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorResponse{
		Code:    ce.Code,
		Message: ce.Error(),
	})
}
