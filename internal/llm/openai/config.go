package openai

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

// Config for the OpenAI client.
type Config struct {
	APIKey            string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL           string        // default https://api.openai.com/v1
	Model             string        // e.g., "gpt-4o-mini"
	VisionModel       string        // used when page images are attached; defaults to Model
	Temperature       float32       // 0..2
	Timeout           time.Duration // http client timeout
	RequestsPerMinute int           // 0 disables pacing
	MaxImagePages     int           // pages attached per PDF
	MaxImageWidth     int           // images are scaled down to this width
	LenientOptional   bool
}

// ConfigFrom maps the application LLM settings onto a client Config.
func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		VisionModel:       c.VisionModel,
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		RequestsPerMinute: c.RequestsPerMinute,
		MaxImagePages:     c.MaxImagePages,
		MaxImageWidth:     c.MaxImageWidth,
		LenientOptional:   true,
	}
}

// PageRenderer turns the first pages of a PDF into PNG images.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}

type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
	pages   PageRenderer
	log     *slog.Logger
}

// NewClient builds the client. pages may be nil, in which case PDFs are
// extracted from their OCR text only.
func NewClient(cfg Config, pages PageRenderer, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxImagePages <= 0 {
		cfg.MaxImagePages = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		cfg:     cfg,
		limiter: limiter,
		pages:   pages,
		log:     logger,
	}
}
