package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siteaudit/pkg/types"
)

// requiredSchemaFields maps a structured-data type to the properties it must
// declare to be considered complete. Types not listed validate trivially.
var requiredSchemaFields = map[string][]string{
	"localbusiness":  {"address", "telephone"},
	"organization":   {"name"},
	"product":        {"name", "offers"},
	"article":        {"headline"},
	"breadcrumblist": {"itemListElement"},
	"faqpage":        {"mainEntity"},
}

// extractSchema scans rendered markup for JSON-LD blocks, flattens @graph
// containers, merges blocks by declared type, and validates required fields.
func extractSchema(doc *goquery.Document) []types.SchemaBlock {
	byType := make(map[string]*types.SchemaBlock)
	var order []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		for _, obj := range decodeJSONLD(raw) {
			typ := schemaType(obj)
			if typ == "" {
				continue
			}
			key := strings.ToLower(typ)
			block, ok := byType[key]
			if !ok {
				block = &types.SchemaBlock{Type: typ, Properties: make(map[string]any)}
				byType[key] = block
				order = append(order, key)
			}
			for prop, val := range obj {
				if strings.HasPrefix(prop, "@") {
					continue
				}
				if _, exists := block.Properties[prop]; !exists {
					block.Properties[prop] = val
				}
			}
		}
	})

	out := make([]types.SchemaBlock, 0, len(order))
	for _, key := range order {
		block := byType[key]
		block.MissingFields = missingFields(key, block.Properties)
		out = append(out, *block)
	}
	return out
}

// decodeJSONLD accepts a single object, an array of objects, or an object
// with an @graph array, and returns the flattened object list.
func decodeJSONLD(raw string) []map[string]any {
	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if graph, ok := single["@graph"].([]any); ok {
			return collectObjects(graph)
		}
		return []map[string]any{single}
	}

	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return collectObjects(list)
	}
	return nil
}

func collectObjects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func schemaType(obj map[string]any) string {
	switch v := obj["@type"].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func missingFields(key string, props map[string]any) []string {
	required, ok := requiredSchemaFields[key]
	if !ok {
		return nil
	}
	var missing []string
	for _, field := range required {
		val, present := props[field]
		if !present || val == nil {
			missing = append(missing, field)
			continue
		}
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}
