package middleware

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sipcheck/internal/pkg/common"
)

// imageEnvelopeBytes data URI 前綴與 JSON 外框預留的空間
const imageEnvelopeBytes = 4 << 10

// ImageBodyLimit 圖片路由的請求體上限：原始圖片上限經 base64 編碼後，再加上外框
func ImageBodyLimit(maxImageBytes int64) int64 {
	if maxImageBytes <= 0 {
		return 0
	}
	return int64(base64.StdEncoding.EncodedLen(int(maxImageBytes))) + imageEnvelopeBytes
}

// BodySizeLimit 以路由為單位限制請求體；maxSize <= 0 時不限制。
// Content-Length 已知時直接回 413，未知時交給 MaxBytesReader 在讀取時截斷。
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			common.LogWarn("請求體過大",
				zap.String("route", c.FullPath()),
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("limit", maxSize),
				zap.String("request_id", requestid.Get(c)),
			)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrorResponse{
				Code:    common.ErrCodePayloadTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", maxSize),
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
