package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zombor/doc-capture/internal/extraction"
)

// ErrEmptyDocument is returned when there are no bytes to preview
var ErrEmptyDocument = errors.New("document is empty")

// PreviewEncoder renders a document as a data URL for display
type PreviewEncoder interface {
	Encode(ctx context.Context, doc extraction.Document) (string, error)
}

// displayable types are passed through unchanged
var displayable = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/bmp":     true,
	"image/svg+xml": true,
}

// DataURLEncoder is the default PreviewEncoder. Browser-displayable images
// are embedded as-is; HEIC, PDF and other decodable formats are converted
// to PNG first.
type DataURLEncoder struct{}

// Encode implements PreviewEncoder
func (DataURLEncoder) Encode(ctx context.Context, doc extraction.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mimeType := resolveContentType(doc.Filename, doc.ContentType, doc.Data)
	data := doc.Data

	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToPNG(doc.Data)
		if err != nil {
			return "", fmt.Errorf("converting PDF to image: %w", err)
		}
		data, mimeType = pngData, "image/png"
	case isHEICMimeType(mimeType) || isHEICFormat(doc.Data):
		pngData, err := imageToPNG(doc.Data, mimeType)
		if err != nil {
			return "", fmt.Errorf("converting image to PNG: %w", err)
		}
		data, mimeType = pngData, "image/png"
	case !displayable[mimeType]:
		pngData, err := imageToPNG(doc.Data, mimeType)
		if err != nil {
			return "", fmt.Errorf("converting image to PNG: %w", err)
		}
		data, mimeType = pngData, "image/png"
	}

	return dataURL(mimeType, data), nil
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
