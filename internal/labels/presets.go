package labels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/schema"
)

// PresetSchema is a label schema written as a YAML mapping of field name to type.
// Field order in the file is kept.
type PresetSchema entity.Schema

func (p *PresetSchema) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema must be a mapping of field to type", n.Line)
	}
	out := make(PresetSchema, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: type of %q must be a string", v.Line, k.Value)
		}
		t, ok := entity.ParseFieldType(v.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown type %q for field %q", v.Line, v.Value, k.Value)
		}
		out = append(out, entity.Field{Name: k.Value, Type: t})
	}
	*p = out
	return nil
}

func (p PresetSchema) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range p {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(f.Type)},
		)
	}
	return n, nil
}

// Preset is one label entry of a presets file.
type Preset struct {
	Name                   string       `yaml:"name"`
	Schema                 PresetSchema `yaml:"schema"`
	NamingTemplate         string       `yaml:"naming_template,omitempty"`
	FallbackInstructions   string       `yaml:"fallback_instructions,omitempty"`
	ExtractionInstructions string       `yaml:"extraction_instructions,omitempty"`
}

// PresetFile is the document layout of a presets file.
type PresetFile struct {
	Labels []Preset `yaml:"labels"`
}

// LoadPresets reads a presets file.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewNotFound("presets file", path)
		}
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f PresetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, common.ValidationError{Field: "presets", Value: path, Message: err.Error()}
	}
	return f.Labels, nil
}

// SeedIfEmpty creates the labels of the presets file when the library is empty.
// Every entry is validated before the first insert. It returns the number of
// labels created.
func (s *Service) SeedIfEmpty(ctx context.Context, path string) (int, error) {
	n, err := s.labels.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("labels.presets.skipped", "existing", n)
		return 0, nil
	}
	presets, err := LoadPresets(path)
	if err != nil {
		return 0, err
	}

	reqs := make([]CreateLabelRequest, 0, len(presets))
	seen := make(map[string]bool, len(presets))
	v := common.NewValidator()
	for i, p := range presets {
		field := fmt.Sprintf("labels[%d]", i)
		name := strings.TrimSpace(p.Name)
		v.Field(field+".name", name, common.Required, common.MaxLength(MaxNameLength))
		if seen[strings.ToLower(name)] {
			v.Add(field+".name", name, "duplicate label name")
		}
		seen[strings.ToLower(name)] = true

		raw, err := entity.Schema(p.Schema).MarshalJSON()
		if err != nil {
			return 0, err
		}
		if _, err := schema.ValidateConfig(string(raw), p.NamingTemplate); err != nil {
			v.Add(field, name, err.Error())
		}
		reqs = append(reqs, CreateLabelRequest{
			Name:                   name,
			SchemaJSON:             string(raw),
			NamingTemplate:         p.NamingTemplate,
			FallbackInstructions:   p.FallbackInstructions,
			ExtractionInstructions: p.ExtractionInstructions,
		})
	}
	if err := v.Error(); err != nil {
		return 0, err
	}

	for _, req := range reqs {
		if _, err := s.CreateLabel(ctx, req); err != nil {
			return 0, err
		}
	}
	s.logger.Info("labels.presets.seeded", "path", path, "labels", len(reqs))
	return len(reqs), nil
}

// Export writes every label, inactive ones included, to path sorted by name.
func (s *Service) Export(ctx context.Context, path string) (int, error) {
	all, err := s.labels.List(ctx, true)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	f := PresetFile{Labels: make([]Preset, 0, len(all))}
	for _, l := range all {
		f.Labels = append(f.Labels, Preset{
			Name:                   l.Name,
			Schema:                 PresetSchema(l.Schema),
			NamingTemplate:         l.NamingTemplate,
			FallbackInstructions:   l.FallbackInstructions,
			ExtractionInstructions: l.ExtractionInstructions,
		})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return 0, fmt.Errorf("encode presets: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write presets: %w", err)
	}
	s.logger.Info("labels.presets.exported", "path", path, "labels", len(all))
	return len(all), nil
}
