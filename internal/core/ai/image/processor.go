package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"  // 支援 GIF
	_ "image/jpeg" // 支援 JPEG
	_ "image/png"  // 支援 PNG

	"sipcheck/internal/core/ai/provider"
	"sipcheck/internal/pkg/common"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// Processor 將上傳的圖片整理成送往模型的 JPEG
type Processor struct {
	maxSizeBytes int64
	maxDimension int
	quality      int
}

// NewProcessor 創建圖片處理器；maxDimension <= 0 表示不縮放
func NewProcessor(maxSizeBytes int64, maxDimension, quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Processor{
		maxSizeBytes: maxSizeBytes,
		maxDimension: maxDimension,
		quality:      quality,
	}
}

// Prepare 解碼、依 EXIF 轉正、限制尺寸後重新編碼為 JPEG。
// 任何失敗都回傳 INPUT_ERROR。
func (p *Processor) Prepare(data []byte) (*provider.Image, error) {
	if len(data) == 0 {
		return nil, common.NewInputError(errors.New("image data is empty"))
	}
	if p.maxSizeBytes > 0 && int64(len(data)) > p.maxSizeBytes {
		return nil, common.NewInputError(fmt.Errorf("image size exceeds maximum limit of %d bytes", p.maxSizeBytes))
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		common.LogImageProcessing("warn", zap.Error(err), zap.Int("bytes", len(data)))
		return nil, common.NewInputError(fmt.Errorf("failed to decode image: %w", err))
	}
	if !isSupportedFormat(format) {
		return nil, common.NewInputError(fmt.Errorf("unsupported image format: %s", format))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		common.LogImageProcessing("warn", zap.Error(err), zap.String("format", format))
		return nil, common.NewInputError(fmt.Errorf("failed to decode image: %w", err))
	}

	bounds := img.Bounds()
	if p.maxDimension > 0 && (bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension) {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, common.NewInputError(fmt.Errorf("failed to encode image as JPEG: %w", err))
	}

	common.LogImageProcessing("info",
		zap.String("format", format),
		zap.Int("original_bytes", len(data)),
		zap.Int("encoded_bytes", buf.Len()),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)

	return &provider.Image{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

// DecodePayload 接受 data URI 或純 base64 字串
func DecodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, common.NewInputError(errors.New("image data is empty"))
	}
	if strings.HasPrefix(payload, "data:") {
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
			return nil, common.NewInputError(errors.New("invalid data URI"))
		}
		payload = parts[1]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, common.NewInputError(fmt.Errorf("failed to decode base64 data: %w", err))
	}
	return data, nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	switch format {
	case "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}
