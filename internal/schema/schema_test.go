package schema

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name       string
		schema     string
		template   string
		wantFields []string
		wantMsg    string
	}{
		{name: "valid", schema: `{"vendor": "string", "amount": "number"}`, template: "Invoice_{vendor}_{amount}"},
		{name: "no template", schema: `{"vendor": "string"}`},
		{name: "missing placeholder", schema: `{"amount": "number"}`, template: "Invoice_{missing_field}",
			wantFields: []string{"missing_field"}, wantMsg: "Naming template placeholder 'missing_field' missing in schema."},
		{name: "empty schema with placeholders", schema: "", template: "{a}_{b}",
			wantFields: []string{"naming_template"}, wantMsg: "Naming template has placeholders but schema is empty."},
		{name: "nested", schema: `{"party": {"type": "object"}}`,
			wantFields: []string{"party"}, wantMsg: "Schema field 'party' must be a primitive value, not nested."},
		{name: "not an object", schema: `[1, 2]`,
			wantFields: []string{"schema"}, wantMsg: "Schema JSON must be an object."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ValidateConfig(tt.schema, tt.template)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.NotNil(t, s)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrValidation))
			var verrs common.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.wantFields, verrs.Fields())
			assert.Contains(t, verrs.Messages(), tt.wantMsg)
		})
	}
}

func TestIsPluralKey(t *testing.T) {
	tests := map[string]bool{
		"items":       true,
		"line_items":  true,
		"price_list":  true,
		"partners":    true,
		"address":     false,
		"status":      false,
		"analysis":    false,
		"total":       false,
		"invoice_no":  false,
		"activities":  true,
		"bonus":       false,
		"checklist_a": true,
	}
	for key, want := range tests {
		assert.Equal(t, want, IsPluralKey(key), key)
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "invoice_number", NormalizeKey("  Invoice Number "))
	assert.Equal(t, "due_date", NormalizeKey("Due-Date"))
	assert.Equal(t, "a_b", NormalizeKey("a__b"))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestSanitize(t *testing.T) {
	draft := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"Invoice Number": map[string]any{"type": "string"},
			"line_items":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"total":          map[string]any{"type": "number"},
			"address":        map[string]any{"type": "array"},
			"issue_date":     map[string]any{"type": "string", "format": "date"},
			"الاسم":          map[string]any{"type": "string"},
			strings.Repeat("k", 41): map[string]any{"type": "string"},
		},
		"required": []any{"total", "not_a_property"},
	}
	got := Sanitize(draft, MaxFields)
	assert.Equal(t, entity.Schema{
		{Name: "total", Type: entity.FieldNumber},
		{Name: "invoice_number", Type: entity.FieldString},
		{Name: "address", Type: entity.FieldString},
		{Name: "issue_date", Type: entity.FieldDate},
		{Name: "line_items", Type: entity.FieldList},
	}, got)

	many := map[string]any{}
	for i := 0; i < 20; i++ {
		many[string(rune('a'+i))+"_field"] = map[string]any{"type": "string"}
	}
	assert.Len(t, Sanitize(map[string]any{"type": "object", "properties": many}, MaxFields), MaxFields)

	assert.True(t, Sanitize(map[string]any{"type": "array"}, MaxFields).Empty())
	assert.True(t, Sanitize(map[string]any{}, MaxFields).Empty())
}

func TestSanitize_AgreesWithStoredSchemaParser(t *testing.T) {
	tests := []struct {
		name string
		key  string
		desc string
		want entity.FieldType
	}{
		{name: "date format", key: "issued", desc: `{"type": "string", "format": "date"}`, want: entity.FieldDate},
		{name: "date-time format", key: "issued_at", desc: `{"type": "string", "format": "date-time"}`, want: entity.FieldDate},
		{name: "nullable string", key: "vendor", desc: `{"type": ["string", "null"]}`, want: entity.FieldString},
		{name: "nullable number", key: "total", desc: `{"type": ["null", "number"]}`, want: entity.FieldNumber},
		{name: "nullable date", key: "due", desc: `{"type": ["string", "null"], "format": "date"}`, want: entity.FieldDate},
		{name: "plural array", key: "line_items", desc: `{"type": ["array", "null"], "items": {"type": "string"}}`, want: entity.FieldList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prop map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.desc), &prop))
			built := Sanitize(map[string]any{"type": "object", "properties": map[string]any{tt.key: prop}}, MaxFields)
			require.Len(t, built, 1)
			assert.Equal(t, tt.want, built[0].Type)

			parsed, err := entity.ParseSchema(`{"type": "object", "properties": {"` + tt.key + `": ` + tt.desc + `}}`)
			require.NoError(t, err)
			assert.Equal(t, built, parsed)
		})
	}
}

func TestExampleFromText(t *testing.T) {
	text := strings.Join([]string{
		"Invoice No: 42",
		"Vendor: ACME",
		"Kuwait City",
		": Issue Location",
		"Partners: Alice",
		"Partners: Bob",
		"Date: 2024-01-01 10:30",
		":",
	}, "\n")
	ex := ExampleFromText(text)
	assert.Equal(t, []string{"invoice_no", "vendor", "issue_location", "partners", "date"}, ex.Keys)
	assert.Equal(t, []string{"Kuwait City"}, ex.Values["issue_location"])
	assert.Equal(t, []string{"2024-01-01 10:30"}, ex.Values["date"])

	assert.Equal(t, entity.Schema{
		{Name: "invoice_no", Type: entity.FieldString},
		{Name: "vendor", Type: entity.FieldString},
		{Name: "issue_location", Type: entity.FieldString},
		{Name: "partners", Type: entity.FieldList},
		{Name: "date", Type: entity.FieldString},
	}, ex.Infer(MaxFields))
}

type reply struct {
	draft llm.SchemaDraft
	err   error
}

type scriptedGen struct {
	replies []reply
	reqs    []llm.SchemaRequest
}

func (g *scriptedGen) ScoreCandidates(context.Context, string, []llm.Candidate) (llm.Scoring, error) {
	return llm.Scoring{}, errors.New("not used")
}

func (g *scriptedGen) ExtractFields(context.Context, llm.ExtractRequest) (llm.FieldResult, error) {
	return llm.FieldResult{}, errors.New("not used")
}

func (g *scriptedGen) GenerateSchema(_ context.Context, req llm.SchemaRequest) (llm.SchemaDraft, error) {
	g.reqs = append(g.reqs, req)
	if len(g.replies) == 0 {
		return llm.SchemaDraft{}, errors.New("no reply scripted")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.draft, r.err
}

func draftWith(instructions string, fields ...string) reply {
	props := map[string]any{}
	required := []any{}
	for _, f := range fields {
		name, typ, _ := strings.Cut(f, ":")
		if typ == "" {
			typ = "string"
		}
		props[name] = map[string]any{"type": typ}
		required = append(required, name)
	}
	return reply{draft: llm.SchemaDraft{
		Schema:       map[string]any{"type": "object", "properties": props, "required": required},
		Instructions: instructions,
	}}
}

func failed() reply { return reply{err: errors.New("bad reply")} }

func newLabels(t *testing.T) repository.LabelRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "s.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return repository.NewLabelRepository(db, nil)
}

func createLabel(t *testing.T, labels repository.LabelRepository, id, template string) {
	t.Helper()
	require.NoError(t, labels.Create(context.Background(), &entity.Label{
		ID: id, Name: "Label " + id, IsActive: true, CreatedAt: time.Now(), NamingTemplate: template,
	}))
}

const sampleText = "Invoice No: 42\nVendor: ACME\nTotal: 12.50"

func TestBuildFromOCR_GuidanceOnly(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "Invoice_{vendor}")
	gen := &scriptedGen{replies: []reply{
		draftWith("Fill vendor and total.", "vendor", "total:number"),
		draftWith("", "vendor", "total:number"),
	}}
	b := NewBuilder(labels, gen, nil)

	res, err := b.BuildFromOCR(ctx, "l1", sampleText, "Capture the vendor and the total")
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.Equal(t, []string{"vendor", "total"}, res.Schema.Keys())
	assert.Equal(t, "Fill vendor and total.", res.Instructions)

	require.Len(t, gen.reqs, 2)
	assert.Equal(t, "", gen.reqs[0].Text)
	assert.Equal(t, "", gen.reqs[0].Hint)
	assert.Equal(t, "Capture the vendor and the total", gen.reqs[0].Guidance)
	assert.NotNil(t, gen.reqs[1].Proposed)

	stored, err := labels.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, res.Schema, stored.Schema)
	assert.Equal(t, "Fill vendor and total.", stored.ExtractionInstructions)
}

func TestBuildFromOCR_RepairAndRefineFailure(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	gen := &scriptedGen{replies: []reply{
		failed(),
		draftWith("", "invoice_no", "vendor"),
		failed(),
		failed(),
	}}
	b := NewBuilder(labels, gen, nil)

	res, err := b.BuildFromOCR(ctx, "l1", sampleText, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice_no", "vendor"}, res.Schema.Keys())
	assert.Equal(t, constants.DefaultExtractionInstructions, res.Instructions)

	require.Len(t, gen.reqs, 4)
	assert.Contains(t, gen.reqs[0].Hint, "Detected fields: invoice_no, total, vendor")
	assert.Contains(t, gen.reqs[1].Hint, hintRepair)
	assert.Equal(t, sampleText, gen.reqs[0].Text)
}

func TestBuildFromOCR_FallsBackToInferred(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	b := NewBuilder(labels, &scriptedGen{}, nil)

	res, err := b.BuildFromOCR(ctx, "l1", sampleText, "")
	require.NoError(t, err)
	assert.Equal(t, SourceInferred, res.Source)
	assert.Equal(t, []string{"invoice_no", "vendor", "total"}, res.Schema.Keys())

	nilGen := NewBuilder(labels, nil, nil)
	res, err = nilGen.BuildFromOCR(ctx, "l1", sampleText, "")
	require.NoError(t, err)
	assert.Equal(t, SourceInferred, res.Source)
}

func TestBuildFromOCR_GuidedFailureIsCapabilityError(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	b := NewBuilder(labels, &scriptedGen{}, nil)

	_, err := b.BuildFromOCR(ctx, "l1", sampleText, "only the vendor")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCapability))

	stored, err := labels.Get(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, stored.Schema.Empty())
}

func TestBuildFromOCR_TooManyListsRetries(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	lists := []string{"partners:array", "activities:array", "managers:array", "items:array", "name"}
	gen := &scriptedGen{replies: []reply{
		draftWith("", lists...),
		draftWith("", lists...),
		draftWith("", "partners:array", "name"),
		draftWith("Read partners.", "partners:array", "name"),
	}}
	b := NewBuilder(labels, gen, nil)

	res, err := b.BuildFromOCR(ctx, "l1", sampleText, "")
	require.NoError(t, err)
	assert.Equal(t, 1, CountLists(res.Schema))
	assert.Equal(t, "Read partners.", res.Instructions)
	require.Len(t, gen.reqs, 4)
	assert.Contains(t, gen.reqs[2].Hint, hintNoArrays)
	assert.Nil(t, gen.reqs[2].Proposed)
	assert.NotNil(t, gen.reqs[3].Proposed)
	assert.Contains(t, gen.reqs[3].Hint, hintNoArrays)
}

func TestBuildFromOCR_EmptyDraftRetries(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	gen := &scriptedGen{replies: []reply{
		draftWith(""),
		draftWith("", "vendor"),
		draftWith("", "vendor", "total:number"),
	}}
	b := NewBuilder(labels, gen, nil)

	res, err := b.BuildFromOCR(ctx, "l1", sampleText, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "total"}, res.Schema.Keys())
	require.Len(t, gen.reqs, 3)
	assert.Contains(t, gen.reqs[1].Hint, hintNotEmpty)
	assert.Nil(t, gen.reqs[1].Proposed)
	assert.NotNil(t, gen.reqs[2].Proposed)
}

func TestBuildFromOCR_RetriedDraftRefinement(t *testing.T) {
	tests := []struct {
		name     string
		replies  []reply
		wantKeys []string
		wantReqs int
	}{
		{
			name:     "refinement replaces retried draft",
			replies:  []reply{draftWith(""), draftWith("", "Vendor Name"), draftWith("", "vendor")},
			wantKeys: []string{"vendor"},
			wantReqs: 3,
		},
		{
			name:     "failed refinement keeps retried draft",
			replies:  []reply{draftWith(""), draftWith("", "vendor"), failed(), failed()},
			wantKeys: []string{"vendor"},
			wantReqs: 4,
		},
		{
			name:     "empty refinement keeps retried draft",
			replies:  []reply{draftWith(""), draftWith("", "vendor", "total:number"), draftWith("")},
			wantKeys: []string{"vendor", "total"},
			wantReqs: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := newLabels(t)
			createLabel(t, labels, "l1", "")
			gen := &scriptedGen{replies: tt.replies}

			res, err := NewBuilder(labels, gen, nil).BuildFromOCR(context.Background(), "l1", sampleText, "")
			require.NoError(t, err)
			assert.Equal(t, SourceGenerated, res.Source)
			assert.Equal(t, tt.wantKeys, res.Schema.Keys())
			require.Len(t, gen.reqs, tt.wantReqs)
			assert.NotNil(t, gen.reqs[2].Proposed)
		})
	}
}

func TestBuildFromOCR_TemplateMustResolve(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "Invoice_{amount}")
	gen := &scriptedGen{replies: []reply{draftWith("", "vendor"), draftWith("", "vendor")}}
	b := NewBuilder(labels, gen, nil)

	_, err := b.BuildFromOCR(ctx, "l1", sampleText, "")
	var verrs common.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"amount"}, verrs.Fields())

	stored, err := labels.Get(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, stored.Schema.Empty())
}

func TestBuildFromOCR_InputErrors(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "")
	b := NewBuilder(labels, &scriptedGen{}, nil)

	_, err := b.BuildFromOCR(ctx, "l1", "  ", "")
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = b.BuildFromOCR(ctx, "missing", sampleText, "")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestBuildFromExample(t *testing.T) {
	ctx := context.Background()
	labels := newLabels(t)
	createLabel(t, labels, "l1", "{total}")
	b := NewBuilder(labels, nil, nil)

	res, err := b.BuildFromExample(ctx, "l1", `{"Total": 12.5, "items": ["a"], "vendor": "ACME", "paid": true}`, "")
	require.NoError(t, err)
	assert.Equal(t, entity.Schema{
		{Name: "total", Type: entity.FieldNumber},
		{Name: "items", Type: entity.FieldList},
		{Name: "paid", Type: entity.FieldString},
		{Name: "vendor", Type: entity.FieldString},
	}, res.Schema)
	assert.Equal(t, constants.DefaultExtractionInstructions, res.Instructions)

	_, err = b.BuildFromExample(ctx, "l1", `[1]`, "")
	assert.True(t, errors.Is(err, common.ErrValidation))
}
