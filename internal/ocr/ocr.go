package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

// Methods recorded as the OCR engine of a result.
const (
	MethodText     = "text"
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

// minTextLayer is the amount of pdftotext output below which a PDF is treated as scanned.
const minTextLayer = 20

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string // heif-convert | magick | sips
	EnableTSVConfidence bool
	// Preprocess runs a second pass over an upscaled grayscale copy and merges both texts.
	Preprocess bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// ArtifactCacheDir keeps converted HEIC images keyed by content hash. Empty disables caching.
	ArtifactCacheDir string
}

// ConfigFrom maps the application config onto engine settings.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		TesseractLang:       c.TesseractLang,
		TessdataDir:         c.TessdataDir,
		DPI:                 c.DPI,
		MaxPages:            c.MaxPages,
		HeicConverter:       c.HeicConverter,
		Preprocess:          c.Preprocess,
		EnableTSVConfidence: true,
	}
}

// Result is the text read from one document.
type Result struct {
	Text       string
	Confidence float64
	Engine     string
	Pages      int
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Engine reads text out of document bytes with poppler and tesseract.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner, for tests.
func (e *Engine) WithRunner(r Runner) *Engine {
	e.runner = r
	return e
}

// Extract reads the text of a document. The strategy follows the MIME type,
// falling back to the %PDF signature when the type is unknown.
func (e *Engine) Extract(ctx context.Context, data []byte, mimeType string) (Result, error) {
	start := time.Now()
	if len(data) == 0 {
		return Result{}, errors.New("no bytes to read")
	}
	format := constants.MapMimeToFormat(mimeType)
	if format == "" && bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF")) {
		format = constants.PDF
	}
	e.logger.Debug("ocr.extract.start", "mime_type", mimeType, "format", format, "bytes", len(data))

	var res Result
	var err error
	switch format {
	case constants.TEXT:
		res = Result{Text: Normalize(string(data)), Confidence: 1, Engine: MethodText, Pages: 1}
	case constants.PDF, constants.IMAGE:
		res, err = e.extractFile(ctx, data, mimeType, format)
	default:
		e.logger.Error("unsupported ocr mime type", "mime_type", mimeType)
		return Result{}, fmt.Errorf("unsupported mime type: %q", mimeType)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	e.logger.Debug("ocr.extract.ok", "engine", res.Engine, "pages", res.Pages, "chars", len(res.Text), "confidence", res.Confidence)
	return res, nil
}

func (e *Engine) extractFile(ctx context.Context, data []byte, mimeType, format string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "renamer-ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	ext := constants.ExtForMime(mimeType)
	if ext == "" {
		ext = ".pdf"
		if format == constants.IMAGE {
			ext = ".png"
		}
	}
	path := filepath.Join(tmpDir, "input"+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Result{}, err
	}

	if format == constants.PDF {
		return e.extractPDF(ctx, path)
	}

	var warns []string
	if constants.IsHEIC(mimeType) {
		sum := sha256.Sum256(data)
		out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hex.EncodeToString(sum[:]))
		warns = append(warns, w...)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "error", err)
			return Result{Warnings: warns}, err
		}
		path = out
	}
	res, err := e.extractImage(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	return res, err
}

func (e *Engine) extractPDF(ctx context.Context, path string) (Result, error) {
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && len(strings.TrimSpace(text)) >= minTextLayer {
		text = Normalize(text)
		return Result{
			Text:       text,
			Confidence: blend(0.95, heuristicConfidence(text)),
			Engine:     MethodPDFText,
			Pages:      pages,
			Language:   e.cfg.TesseractLang,
			Warnings:   warns,
		}, nil
	}
	if err != nil {
		e.logger.Warn("pdftotext failed, rasterizing", "error", err)
	}

	raw, pre, pages, conf, warns2, err := e.pdfToOCR(ctx, path)
	warns = append(warns, warns2...)
	if err != nil {
		return Result{Warnings: warns}, err
	}
	text = e.combine(raw, pre)
	return Result{
		Text:       text,
		Confidence: blend(conf, heuristicConfidence(text)),
		Engine:     MethodPDFOCR,
		Pages:      pages,
		Language:   e.cfg.TesseractLang,
		Warnings:   warns,
	}, nil
}

// combine merges the raw and preprocessed passes when preprocessing produced text.
func (e *Engine) combine(raw, pre string) string {
	if strings.TrimSpace(pre) == "" {
		return Normalize(raw)
	}
	return MergeText(Normalize(raw), Normalize(pre))
}

// blend weights tesseract's own confidence over the text heuristic when present.
func blend(ocrConf, heurConf float64) float64 {
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
