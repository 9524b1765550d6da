package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
)

var _ llm.StructuredGenerator = (*Client)(nil)

// ScoreCandidates scores every candidate in a single chat completion.
// An unreadable reply is reported through signals rather than as an error.
func (c *Client) ScoreCandidates(ctx context.Context, text string, candidates []llm.Candidate) (llm.Scoring, error) {
	rid := requestID(ctx)
	start := time.Now()
	c.log.Info("llm.score.start", "req_id", rid, "model", c.cfg.Model, "candidates", len(candidates), "text_len", len(text))

	sys, user := llm.BuildScoringPrompts(text, candidates)
	content, err := c.chat(ctx, rid, c.cfg.Model, textMessages(sys, user))
	if err != nil {
		return llm.Scoring{}, err
	}
	out, err := llm.ParseScoring(content)
	if err != nil {
		c.log.Warn("llm.score.parse_failed", "req_id", rid, "error", err, "content", content)
		return llm.ParseFailedScoring(), nil
	}
	c.log.Info("llm.score.ok", "req_id", rid, "scores", len(out.Scores), "signals", out.Signals,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// ExtractFields fills the schema from page images when the source bytes can be
// shown to a vision model, and from text otherwise.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.FieldResult, error) {
	rid := requestID(ctx)
	start := time.Now()

	images, err := c.pageImages(ctx, req.Content)
	if err != nil {
		c.log.Warn("llm.extract.images_skipped", "req_id", rid, "file_id", req.FileID, "error", err)
		images = nil
	}
	if len(images) == 0 && strings.TrimSpace(req.Content.Text) == "" {
		return llm.FieldResult{}, errors.New("no readable content for extraction")
	}

	model := c.cfg.Model
	if len(images) > 0 {
		model = c.cfg.VisionModel
	}
	c.log.Info("llm.extract.start",
		"req_id", rid,
		"file_id", req.FileID,
		"model", model,
		"fields", len(req.Schema),
		"images", len(images),
		"text_len", len(req.Content.Text),
	)

	sys, user := llm.BuildExtractionPrompts(req, len(images) > 0)
	msgs := textMessages(sys, user)
	if len(images) > 0 {
		msgs = visionMessages(sys, user, images)
	}
	content, err := c.chat(ctx, rid, model, msgs)
	if err != nil {
		return llm.FieldResult{}, err
	}

	out, err := llm.ParseFields(content, req.Schema)
	if err != nil {
		c.log.Error("llm.extract.decode_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.FieldResult{}, err
	}

	schema := req.Schema.JSONSchema()
	if err := llm.ValidateJSONAgainstSchema(schema, out.RawFields); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(out.Raw),
				"elapsed_ms", time.Since(start).Milliseconds())
			return llm.FieldResult{}, fmt.Errorf("schema validation failed: %w", err)
		}
		fixed, changed := llm.SanitizeFieldDoc(req.Schema, out.Fields)
		if vErr := llm.ValidateValue(schema, fixed); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(out.Raw),
				"elapsed_ms", time.Since(start).Milliseconds())
			return llm.FieldResult{}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "changed", changed,
			"elapsed_ms", time.Since(start).Milliseconds())
		out.Fields = fixed
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"file_id", req.FileID,
		"fields", len(out.Fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// GenerateSchema drafts a label schema.
func (c *Client) GenerateSchema(ctx context.Context, req llm.SchemaRequest) (llm.SchemaDraft, error) {
	rid := requestID(ctx)
	start := time.Now()
	c.log.Info("llm.schema.start", "req_id", rid, "label", req.LabelName,
		"guidance", req.Guidance != "", "refine", req.Proposed != nil)

	sys, user := llm.BuildSchemaPrompts(req)
	content, err := c.chat(ctx, rid, c.cfg.Model, textMessages(sys, user))
	if err != nil {
		return llm.SchemaDraft{}, err
	}
	draft, err := llm.ParseDraft(content)
	if err != nil {
		c.log.Warn("llm.schema.parse_failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.SchemaDraft{}, err
	}
	c.log.Info("llm.schema.ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return draft, nil
}

// chat runs one JSON-mode completion and returns the reply text.
func (c *Client) chat(ctx context.Context, rid, model string, msgs []openai.ChatCompletionMessage) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error("llm.http_error", "req_id", rid, "model", model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.log.Error("llm.no_choices", "req_id", rid, "model", model)
		return "", errors.New("no choices in openai response")
	}
	c.log.Debug("llm.usage", "req_id", rid, "prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func textMessages(sys, user string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sys},
		{Role: openai.ChatMessageRoleUser, Content: user + "\n\nReturn ONLY JSON."},
	}
}

func visionMessages(sys, user string, images []string) []openai.ChatCompletionMessage {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: user + "\n\nReturn ONLY JSON."}}
	for _, u := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailAuto},
		})
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sys},
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	}
}

// requestID reuses the caller's request id so model calls log under the rpc that caused them.
func requestID(ctx context.Context) string {
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		return rid
	}
	return uuid.NewString()
}
