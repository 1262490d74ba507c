package validation

import (
	"strings"
)

// Tag limits for uploaded images.
const (
	MaxTags      = 20
	MaxTagLength = 40
)

// ImageTagsSchema is the accepted shape of an image's tag list.
const ImageTagsSchema = `{
  "type": "array",
  "maxItems": 20,
  "items": {
    "type": "string",
    "minLength": 1,
    "maxLength": 40,
    "pattern": "^[^,\\s][^,]*$"
  }
}`

// ParseTags accepts either a JSON array of strings or a comma separated list.
// Entries are trimmed, empty CSV entries are dropped and duplicates collapse.
func (v *SchemaValidator) ParseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}

	var doc []any
	if strings.HasPrefix(raw, "[") {
		decoded, err := DecodeJSON(raw)
		if err != nil {
			return nil, err
		}
		if err := v.Validate(ImageTagsSchema, decoded); err != nil {
			return nil, err
		}
		doc = decoded.([]any)
	} else {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				doc = append(doc, part)
			}
		}
		if doc == nil {
			doc = []any{}
		}
		if err := v.Validate(ImageTagsSchema, doc); err != nil {
			return nil, err
		}
	}

	tags := make([]string, 0, len(doc))
	seen := make(map[string]bool, len(doc))
	for _, item := range doc {
		tag := strings.TrimSpace(item.(string))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, nil
}
