package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func (e *Engine) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

// rasterize renders PDF pages to PNG files in dir and returns their paths in page order.
func (e *Engine) rasterize(ctx context.Context, path, dir string, maxPages int) ([]string, []string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return nil, []string{string(errb)}, err
	}

	// prefix-1.png, prefix-2.png, ... (zero padded for long documents)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}
	return matches, nil, nil
}

// pdfToOCR rasterizes a scanned PDF and reads each page. It returns the raw and
// preprocessed texts separately, with pages separated by form feeds.
func (e *Engine) pdfToOCR(ctx context.Context, path string) (raw, pre string, pages int, conf float64, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "renamer-pp-*")
	if err != nil {
		return "", "", 0, 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	images, warns, err := e.rasterize(ctx, path, tmpDir, e.cfg.MaxPages)
	if err != nil {
		return "", "", 0, 0, warns, err
	}

	var rawPages, prePages []string
	var confSum float64
	var confN int
	for _, img := range images {
		r, p, c, w, err := e.readImage(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		rawPages = append(rawPages, r)
		if strings.TrimSpace(p) != "" {
			prePages = append(prePages, p)
		}
		if c > 0 {
			confSum += c
			confN++
		}
	}
	if len(rawPages) == 0 {
		return "", "", 0, 0, warns, fmt.Errorf("no page could be read")
	}
	if confN > 0 {
		conf = confSum / float64(confN)
	}
	return strings.Join(rawPages, "\n\f\n"), strings.Join(prePages, "\n\f\n"), len(images), conf, warns, nil
}

// RenderPages rasterizes up to maxPages pages of a PDF to PNG bytes. It lets
// vision extraction see scanned documents.
func (e *Engine) RenderPages(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "renamer-render-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	images, _, err := e.rasterize(ctx, in, tmpDir, maxPages)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(images))
	for _, img := range images {
		data, err := os.ReadFile(img)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}
