package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/entity"
	"github.com/joseph-ayodele/folder-renamer/internal/rename"
)

// ValidateConfig is the gate a (schema, naming template) pair passes before it is
// saved. It returns the parsed schema, or common.ValidationErrors listing every
// problem found; unresolved placeholders are reported with the placeholder as Field.
func ValidateConfig(schemaJSON, namingTemplate string) (entity.Schema, error) {
	parsed, err := entity.ParseSchema(schemaJSON)
	if err != nil {
		var verrs common.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, verrs
		}
		return nil, common.ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	if err := ValidateTemplate(parsed, namingTemplate); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ValidateTemplate checks that every {placeholder} in namingTemplate is a schema key.
func ValidateTemplate(s entity.Schema, namingTemplate string) error {
	placeholders := rename.Placeholders(namingTemplate)
	if len(placeholders) == 0 {
		return nil
	}
	if s.Empty() {
		return common.ValidationErrors{{
			Field:   "naming_template",
			Value:   strings.Join(placeholders, ","),
			Message: "Naming template has placeholders but schema is empty.",
		}}
	}
	var errs common.ValidationErrors
	for _, p := range placeholders {
		if !s.Has(p) {
			errs = append(errs, common.ValidationError{
				Field:   p,
				Message: fmt.Sprintf("Naming template placeholder '%s' missing in schema.", p),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
