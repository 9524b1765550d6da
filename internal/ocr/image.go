package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
)

// preprocessMinWidth is the width images are upscaled to before the second pass.
const preprocessMinWidth = 2000

func (e *Engine) extractImage(ctx context.Context, path string) (Result, error) {
	raw, pre, ocrConf, warn, err := e.readImage(ctx, path)
	if err != nil {
		return Result{Warnings: warn}, err
	}
	txt := e.combine(raw, pre)
	return Result{
		Text:       txt,
		Confidence: blend(ocrConf, heuristicConfidence(txt)),
		Engine:     MethodImageOCR,
		Pages:      1,
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}, nil
}

// readImage runs tesseract over one image: the raw pass, the optional
// preprocessed pass and the TSV confidence pass. Only the raw pass is required.
func (e *Engine) readImage(ctx context.Context, path string) (raw, pre string, conf float64, warn []string, err error) {
	raw, warn, err = e.tesseractOCR(ctx, path)
	if err != nil {
		return "", "", 0, warn, err
	}
	if e.cfg.Preprocess {
		if prePath, perr := preprocessImage(path); perr == nil {
			if txt, w, terr := e.tesseractOCR(ctx, prePath); terr == nil {
				pre = txt
				warn = append(warn, w...)
			} else {
				warn = append(warn, terr.Error())
			}
		} else {
			warn = append(warn, "preprocess: "+perr.Error())
		}
	}
	if e.cfg.EnableTSVConfidence {
		if c, terr := e.tesseractTSVConfidence(ctx, path); terr == nil {
			conf = c
		} else {
			warn = append(warn, terr.Error())
		}
	}
	return raw, pre, conf, warn, nil
}

func (e *Engine) tesseractArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Engine) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Engine) tesseractTSVConfidence(ctx context.Context, path string) (float64, error) {
	args := append(e.tesseractArgs(path), "tsv")
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w: %s", err, truncate(string(errb), 512))
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column, skipping the header and -1 rows.
func meanTSVConfidence(tsv string) float64 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n / 100
}

// preprocessImage writes an upscaled grayscale PNG next to path.
func preprocessImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if w := img.Bounds().Dx(); w > 0 && w < preprocessMinWidth {
		img = resize.Resize(preprocessMinWidth, 0, img, resize.Lanczos3)
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	for i, v := range gray.Pix {
		gray.Pix[i] = stretch(v)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(filepath.Dir(path), base+"-pre.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return "", err
	}
	return out, os.WriteFile(out, buf.Bytes(), 0o600)
}

// stretch maps 64..192 onto the full 0..255 range.
func stretch(v uint8) uint8 {
	switch {
	case v < 64:
		return 0
	case v >= 192:
		return 255
	}
	return uint8((int(v) - 64) * 2)
}
