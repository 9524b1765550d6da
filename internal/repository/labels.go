package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
)

// LabelRepository is the long-lived label library shared across jobs.
type LabelRepository interface {
	Create(ctx context.Context, label *entity.Label) error
	Get(ctx context.Context, labelID string) (*entity.Label, error)
	GetByName(ctx context.Context, name string) (*entity.Label, error)
	List(ctx context.Context, includeInactive bool) ([]entity.Label, error)
	Update(ctx context.Context, label *entity.Label) error
	SetActive(ctx context.Context, labelID string, active bool) error
	Count(ctx context.Context) (int, error)

	AttachExample(ctx context.Context, ex *entity.LabelExample) error
	ListExamples(ctx context.Context, labelID string) ([]entity.LabelExample, error)
	SaveFeature(ctx context.Context, f entity.LabelFeature) error
	GetFeature(ctx context.Context, exampleID string) (*entity.LabelFeature, error)
	// ListProfiles returns active labels with the features of their examples.
	ListProfiles(ctx context.Context) ([]entity.LabelProfile, error)
}

type labelRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewLabelRepository(db *DB, logger *slog.Logger) LabelRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &labelRepo{db: db, logger: logger}
}

var (
	labelColumns   = []string{"label_id", "name", "is_active", "created_at", "schema_json", "naming_template", "extraction_instructions", "fallback_instructions"}
	exampleColumns = []string{"example_id", "label_id", "file_id", "filename", "created_at"}
	featureColumns = []string{"example_id", "extracted_text", "embedding_json", "tokens_json", "updated_at"}
)

func (r *labelRepo) selectLabels() *entsql.Selector {
	b := r.db.builder()
	return b.Select(labelColumns...).From(b.Table("labels"))
}

func (r *labelRepo) Create(ctx context.Context, l *entity.Label) error {
	if existing, err := r.GetByName(ctx, l.Name); err == nil {
		return fmt.Errorf("label %q already exists as %s: %w", l.Name, existing.ID, common.ErrConflict)
	}
	schema, err := toJSON(l.Schema)
	if err != nil {
		return err
	}
	insert := r.db.builder().Insert("labels").
		Columns(labelColumns...).
		Values(l.ID, l.Name, l.IsActive, fmtTime(l.CreatedAt), schema, l.NamingTemplate, l.ExtractionInstructions, l.FallbackInstructions)
	_, err = r.db.exec(ctx, r.db.sql, insert)
	if err != nil {
		r.logger.Error("failed to create label", "name", l.Name, "error", err)
		return common.WrapError(err, "create label")
	}
	return nil
}

func (r *labelRepo) Get(ctx context.Context, labelID string) (*entity.Label, error) {
	row := r.db.queryRow(ctx, r.db.sql, r.selectLabels().Where(entsql.EQ("label_id", labelID)))
	l, err := scanLabel(row)
	if isNoRows(err) {
		return nil, common.NewNotFound("label", labelID)
	}
	if err != nil {
		r.logger.Error("failed to get label", "label_id", labelID, "error", err)
		return nil, err
	}
	return l, nil
}

// GetByName matches case-insensitively.
func (r *labelRepo) GetByName(ctx context.Context, name string) (*entity.Label, error) {
	row := r.db.queryRow(ctx, r.db.sql,
		r.selectLabels().Where(entsql.EqualFold("name", strings.TrimSpace(name))))
	l, err := scanLabel(row)
	if isNoRows(err) {
		return nil, common.NewNotFound("label", name)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *labelRepo) List(ctx context.Context, includeInactive bool) ([]entity.Label, error) {
	sel := r.selectLabels()
	if !includeInactive {
		sel.Where(entsql.EQ("is_active", true))
	}
	rows, err := r.db.query(ctx, r.db.sql, sel.OrderBy("name", "label_id"))
	if err != nil {
		r.logger.Error("failed to list labels", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *labelRepo) Update(ctx context.Context, l *entity.Label) error {
	if existing, err := r.GetByName(ctx, l.Name); err == nil && existing.ID != l.ID {
		return fmt.Errorf("label %q already exists as %s: %w", l.Name, existing.ID, common.ErrConflict)
	}
	schema, err := toJSON(l.Schema)
	if err != nil {
		return err
	}
	upd := r.db.builder().Update("labels").
		Set("name", l.Name).
		Set("is_active", l.IsActive).
		Set("schema_json", schema).
		Set("naming_template", l.NamingTemplate).
		Set("extraction_instructions", l.ExtractionInstructions).
		Set("fallback_instructions", l.FallbackInstructions).
		Where(entsql.EQ("label_id", l.ID))
	res, err := r.db.exec(ctx, r.db.sql, upd)
	if err != nil {
		r.logger.Error("failed to update label", "label_id", l.ID, "error", err)
		return common.WrapError(err, "update label")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFound("label", l.ID)
	}
	return nil
}

func (r *labelRepo) SetActive(ctx context.Context, labelID string, active bool) error {
	upd := r.db.builder().Update("labels").Set("is_active", active).Where(entsql.EQ("label_id", labelID))
	res, err := r.db.exec(ctx, r.db.sql, upd)
	if err != nil {
		r.logger.Error("failed to set label active flag", "label_id", labelID, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFound("label", labelID)
	}
	return nil
}

func (r *labelRepo) Count(ctx context.Context) (int, error) {
	var n int
	b := r.db.builder()
	if err := r.db.queryRow(ctx, r.db.sql, b.Select(entsql.Count("*")).From(b.Table("labels"))).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AttachExample inserts the example. A file already attached to the same label keeps
// its example id; a file attached to another label is rejected.
func (r *labelRepo) AttachExample(ctx context.Context, ex *entity.LabelExample) error {
	var existingID, existingLabel string
	b := r.db.builder()
	sel := b.Select("example_id", "label_id").From(b.Table("label_examples")).Where(entsql.EQ("file_id", ex.FileID))
	err := r.db.queryRow(ctx, r.db.sql, sel).Scan(&existingID, &existingLabel)
	switch {
	case err == nil && existingLabel != ex.LabelID:
		return common.ValidationError{
			Field:   "file_id",
			Value:   ex.FileID,
			Message: fmt.Sprintf("file is already attached to label %s", existingLabel),
		}
	case err == nil:
		ex.ID = existingID
		upd := b.Update("label_examples").Set("filename", ex.Filename).Where(entsql.EQ("example_id", existingID))
		_, err = r.db.exec(ctx, r.db.sql, upd)
		return err
	case !isNoRows(err):
		return err
	}

	insert := b.Insert("label_examples").
		Columns(exampleColumns...).
		Values(ex.ID, ex.LabelID, ex.FileID, ex.Filename, fmtTime(ex.CreatedAt))
	_, err = r.db.exec(ctx, r.db.sql, insert)
	if err != nil {
		r.logger.Error("failed to attach example", "label_id", ex.LabelID, "file_id", ex.FileID, "error", err)
		return common.WrapError(err, "attach example")
	}
	return nil
}

// ListExamples lists one label's examples, or all examples when labelID is empty.
func (r *labelRepo) ListExamples(ctx context.Context, labelID string) ([]entity.LabelExample, error) {
	b := r.db.builder()
	sel := b.Select(exampleColumns...).From(b.Table("label_examples"))
	if labelID != "" {
		sel.Where(entsql.EQ("label_id", labelID))
	}
	rows, err := r.db.query(ctx, r.db.sql, sel.OrderBy("label_id", "created_at", "example_id"))
	if err != nil {
		r.logger.Error("failed to list examples", "label_id", labelID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.LabelExample
	for rows.Next() {
		var (
			ex        entity.LabelExample
			createdAt string
		)
		if err := rows.Scan(&ex.ID, &ex.LabelID, &ex.FileID, &ex.Filename, &createdAt); err != nil {
			return nil, err
		}
		ex.CreatedAt = parseTime(createdAt)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (r *labelRepo) SaveFeature(ctx context.Context, f entity.LabelFeature) error {
	var emb, toks string
	var err error
	if len(f.Embedding) > 0 {
		if emb, err = toJSON(f.Embedding); err != nil {
			return err
		}
	}
	if len(f.Tokens) > 0 {
		if toks, err = toJSON(f.Tokens); err != nil {
			return err
		}
	}
	upsert := r.db.builder().Insert("label_features").
		Columns(featureColumns...).
		Values(f.ExampleID, f.Text, emb, toks, fmtTime(f.UpdatedAt)).
		OnConflict(entsql.ConflictColumns("example_id"), entsql.ResolveWithNewValues())
	_, err = r.db.exec(ctx, r.db.sql, upsert)
	if err != nil {
		r.logger.Error("failed to save label feature", "example_id", f.ExampleID, "error", err)
		return common.WrapError(err, "save label feature")
	}
	return nil
}

func (r *labelRepo) GetFeature(ctx context.Context, exampleID string) (*entity.LabelFeature, error) {
	b := r.db.builder()
	sel := b.Select(featureColumns...).From(b.Table("label_features")).Where(entsql.EQ("example_id", exampleID))
	row := r.db.queryRow(ctx, r.db.sql, sel)
	f, err := scanFeature(row)
	if isNoRows(err) {
		return nil, common.NewNotFound("label feature", exampleID)
	}
	return f, err
}

func (r *labelRepo) ListProfiles(ctx context.Context) ([]entity.LabelProfile, error) {
	labels, err := r.List(ctx, false)
	if err != nil {
		return nil, err
	}
	b := r.db.builder()
	f, e := b.Table("label_features"), b.Table("label_examples")
	sel := b.Select(e.C("label_id"), f.C("example_id"), f.C("extracted_text"), f.C("embedding_json"), f.C("tokens_json"), f.C("updated_at")).
		From(f).
		Join(e).On(e.C("example_id"), f.C("example_id")).
		OrderBy(e.C("label_id"), e.C("created_at"), e.C("example_id"))
	rows, err := r.db.query(ctx, r.db.sql, sel)
	if err != nil {
		r.logger.Error("failed to list label features", "error", err)
		return nil, err
	}
	defer rows.Close()

	byLabel := make(map[string][]entity.LabelFeature)
	for rows.Next() {
		var labelID string
		f, err := scanFeatureWithLabel(rows, &labelID)
		if err != nil {
			return nil, err
		}
		byLabel[labelID] = append(byLabel[labelID], *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]entity.LabelProfile, 0, len(labels))
	for _, l := range labels {
		out = append(out, entity.LabelProfile{Label: l, Features: byLabel[l.ID]})
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLabel(row rowScanner) (*entity.Label, error) {
	var (
		l         entity.Label
		createdAt string
		schema    string
	)
	if err := row.Scan(&l.ID, &l.Name, &l.IsActive, &createdAt, &schema, &l.NamingTemplate,
		&l.ExtractionInstructions, &l.FallbackInstructions); err != nil {
		return nil, err
	}
	l.CreatedAt = parseTime(createdAt)
	parsed, err := entity.ParseSchema(schema)
	if err != nil {
		return nil, common.WrapError(err, "decode label schema "+l.ID)
	}
	l.Schema = parsed
	return &l, nil
}

func scanFeature(row rowScanner) (*entity.LabelFeature, error) {
	var f entity.LabelFeature
	var emb, toks, at string
	if err := row.Scan(&f.ExampleID, &f.Text, &emb, &toks, &at); err != nil {
		return nil, err
	}
	return decodeFeature(&f, emb, toks, at)
}

func scanFeatureWithLabel(row rowScanner, labelID *string) (*entity.LabelFeature, error) {
	var f entity.LabelFeature
	var emb, toks, at string
	if err := row.Scan(labelID, &f.ExampleID, &f.Text, &emb, &toks, &at); err != nil {
		return nil, err
	}
	return decodeFeature(&f, emb, toks, at)
}

func decodeFeature(f *entity.LabelFeature, emb, toks, at string) (*entity.LabelFeature, error) {
	if err := fromJSON(emb, &f.Embedding); err != nil {
		return nil, common.WrapError(err, "decode embedding "+f.ExampleID)
	}
	if err := fromJSON(toks, &f.Tokens); err != nil {
		return nil, common.WrapError(err, "decode tokens "+f.ExampleID)
	}
	f.UpdatedAt = parseTime(at)
	return f, nil
}
