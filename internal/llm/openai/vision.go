package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
)

const jpegQuality = 85

// IsPDF reports whether content is a PDF by MIME type or magic bytes.
func IsPDF(data []byte, mimeType string) bool {
	return constants.MapMimeToFormat(mimeType) == constants.PDF || bytes.HasPrefix(data, []byte("%PDF"))
}

// pageImages returns JPEG data URLs for the attached bytes: the image itself, or
// the first pages of a PDF. An empty result means text-only extraction.
func (c *Client) pageImages(ctx context.Context, content llm.Content) ([]string, error) {
	if !content.HasBytes() {
		return nil, nil
	}
	var raw [][]byte
	switch {
	case IsPDF(content.Data, content.MimeType):
		if c.pages == nil {
			return nil, nil
		}
		pages, err := c.pages.RenderPages(ctx, content.Data, c.cfg.MaxImagePages)
		if err != nil {
			return nil, fmt.Errorf("render pdf pages: %w", err)
		}
		raw = pages
	case constants.MapMimeToFormat(content.MimeType) == constants.IMAGE:
		raw = [][]byte{content.Data}
	default:
		return nil, nil
	}
	if len(raw) > c.cfg.MaxImagePages {
		raw = raw[:c.cfg.MaxImagePages]
	}

	urls := make([]string, 0, len(raw))
	for i, b := range raw {
		jpg, err := ResizeImage(b, c.cfg.MaxImageWidth, jpegQuality)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		urls = append(urls, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpg))
	}
	return urls, nil
}

// ResizeImage scales an image down to maxWidth, keeping its aspect ratio, and
// re-encodes it as JPEG. maxWidth <= 0 only re-encodes.
func ResizeImage(data []byte, maxWidth, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if maxWidth > 0 && b.Dx() > maxWidth {
		h := uint(float64(maxWidth) * float64(b.Dy()) / float64(b.Dx()))
		img = resize.Resize(uint(maxWidth), h, img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
