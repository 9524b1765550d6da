package schema

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

const (
	SourceGenerated = "generated"
	SourceInferred  = "inferred"
	SourceExample   = "example"
)

const (
	hintRepair   = "Return ONLY a JSON object with keys schema and instructions. schema must be a JSON schema object with properties. instructions must be a string."
	hintNoArrays = "Avoid arrays unless the text clearly lists multiple entries."
	hintNotEmpty = "Return only the 10-15 most important fields. Ignore noisy OCR artifacts."
)

var errGenerationDisabled = errors.New("structured generation is not configured")

// Result is a built schema and the instructions saved with it.
type Result struct {
	LabelID      string        `json:"label_id"`
	Schema       entity.Schema `json:"schema"`
	Instructions string        `json:"instructions"`
	Source       string        `json:"source"`
}

// Builder derives label schemas from example documents.
type Builder struct {
	labels repository.LabelRepository
	gen    llm.StructuredGenerator
	logger *slog.Logger
}

// NewBuilder returns a Builder. gen may be nil, in which case OCR builds fall back
// to the schema inferred from the example text.
func NewBuilder(labels repository.LabelRepository, gen llm.StructuredGenerator, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{labels: labels, gen: gen, logger: logger}
}

// BuildFromOCR drafts a schema for labelID and saves it with the label.
//
// Non-blank guidance is the only source the draft may use; the OCR text is then
// neither sent nor used as a fallback. Otherwise the schema is inferred from the
// text, refined by a second call, and retried when it comes back with too many
// lists or no fields at all. The label's naming template must still resolve
// against the result, or nothing is saved.
func (b *Builder) BuildFromOCR(ctx context.Context, labelID, text, guidance string) (*Result, error) {
	logger := common.LoggerWith(ctx, b.logger).With("label_id", labelID)
	label, err := b.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	guidance = strings.TrimSpace(guidance)
	guided := guidance != ""
	if !guided && strings.TrimSpace(text) == "" {
		return nil, common.ValidationError{Field: "example_text", Message: "OCR text is required."}
	}
	logger.Info("schema.build.start", "guided", guided, "text_len", len(text))

	example := ExampleFromText(text)
	base := llm.SchemaRequest{LabelName: label.Name}
	if guided {
		base.Guidance = guidance
	} else {
		base.Text = text
		base.Hint = llm.DetectedFieldsHint(example.Keys)
	}

	fallback := func(cause error) (entity.Schema, string, error) {
		if guided {
			return nil, "", common.NewCapabilityError(common.CapGeneration, "generate_schema", "", cause)
		}
		logger.Warn("schema.build.fallback_inferred", "error", cause, "fields", len(example.Keys))
		return example.Infer(MaxFields), "", nil
	}

	source := SourceGenerated
	s, instructions, genErr := b.draft(ctx, base)
	if genErr != nil {
		if s, instructions, err = fallback(genErr); err != nil {
			return nil, err
		}
		source = SourceInferred
	}

	if source == SourceGenerated {
		s, instructions = b.refine(ctx, base, s, instructions)
	}

	if source == SourceGenerated && CountLists(s) > 3 {
		logger.Info("schema.build.retry", "reason", "too_many_lists", "lists", CountLists(s))
		s, instructions, source, err = b.retry(ctx, base, hintNoArrays, fallback)
		if err != nil {
			return nil, err
		}
	}
	if source == SourceGenerated && s.Empty() {
		logger.Info("schema.build.retry", "reason", "empty")
		s, instructions, source, err = b.retry(ctx, base, hintNotEmpty, fallback)
		if err != nil {
			return nil, err
		}
	}
	if s.Empty() {
		return nil, common.ValidationError{Field: "schema", Message: "schema builder produced no fields"}
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = constants.DefaultExtractionInstructions
	}

	res := &Result{LabelID: label.ID, Schema: s, Instructions: instructions, Source: source}
	if err := b.save(ctx, label, res); err != nil {
		return nil, err
	}
	logger.Info("schema.build.ok", "fields", len(s), "lists", CountLists(s), "source", source)
	return res, nil
}

// BuildFromExample infers a schema from an example JSON object and saves it.
// Numbers become number fields, arrays list fields, and everything else strings.
func (b *Builder) BuildFromExample(ctx context.Context, labelID, exampleJSON, instructions string) (*Result, error) {
	label, err := b.labels.Get(ctx, labelID)
	if err != nil {
		return nil, err
	}
	var example map[string]any
	if err := json.Unmarshal([]byte(exampleJSON), &example); err != nil || example == nil {
		return nil, common.ValidationError{Field: "example", Message: "Example JSON must be an object."}
	}
	keys := make([]string, 0, len(example))
	for k := range example {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := entity.Schema{}
	for _, k := range keys {
		key := NormalizeKey(k)
		if !validKey(key) || s.Has(key) {
			continue
		}
		t := entity.FieldString
		switch example[k].(type) {
		case float64:
			t = entity.FieldNumber
		case []any:
			t = entity.FieldList
		}
		s = append(s, entity.Field{Name: key, Type: t})
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = constants.DefaultExtractionInstructions
	}
	res := &Result{LabelID: label.ID, Schema: s, Instructions: instructions, Source: SourceExample}
	if err := b.save(ctx, label, res); err != nil {
		return nil, err
	}
	common.LoggerWith(ctx, b.logger).Info("schema.build.ok", "label_id", labelID, "fields", len(s), "source", SourceExample)
	return res, nil
}

func (b *Builder) save(ctx context.Context, label *entity.Label, res *Result) error {
	if err := ValidateTemplate(res.Schema, label.NamingTemplate); err != nil {
		return err
	}
	label.Schema = res.Schema
	label.ExtractionInstructions = res.Instructions
	return b.labels.Update(ctx, label)
}

func (b *Builder) retry(ctx context.Context, base llm.SchemaRequest, hint string, fallback func(error) (entity.Schema, string, error)) (entity.Schema, string, string, error) {
	req := base
	req.Hint = strings.TrimSpace(req.Hint + "\n" + hint)
	s, instr, err := b.draft(ctx, req)
	if err == nil && !s.Empty() {
		s, instr = b.refine(ctx, req, s, instr)
		return s, instr, SourceGenerated, nil
	}
	if err == nil {
		err = errors.New("draft has no usable fields")
	}
	s, instr, ferr := fallback(err)
	if ferr != nil {
		return nil, "", "", ferr
	}
	return s, instr, SourceInferred, nil
}

// refine sends s back as the proposed schema for key and type cleanup. A failed or
// empty refinement keeps s.
func (b *Builder) refine(ctx context.Context, req llm.SchemaRequest, s entity.Schema, instructions string) (entity.Schema, string) {
	if s.Empty() {
		return s, instructions
	}
	req.Proposed = DraftOf(s)
	refined, instr, err := b.draft(ctx, req)
	if err != nil {
		common.LoggerWith(ctx, b.logger).Warn("schema.build.refine_failed", "error", err)
		return s, instructions
	}
	if refined.Empty() {
		return s, instructions
	}
	if instr != "" {
		instructions = instr
	}
	return refined, instructions
}

// draft asks for one schema, repeating the request once with a repair hint when
// the first reply cannot be used.
func (b *Builder) draft(ctx context.Context, req llm.SchemaRequest) (entity.Schema, string, error) {
	if b.gen == nil {
		return nil, "", errGenerationDisabled
	}
	d, err := b.gen.GenerateSchema(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		b.logger.Warn("schema.build.repair", "error", err)
		repair := req
		repair.Hint = strings.TrimSpace(req.Hint + "\n" + hintRepair)
		if d, err = b.gen.GenerateSchema(ctx, repair); err != nil {
			return nil, "", err
		}
	}
	return Sanitize(d.Schema, MaxFields), strings.TrimSpace(d.Instructions), nil
}
