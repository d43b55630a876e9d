package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"omnia/internal/catalog"
	"omnia/internal/jsonval"
)

// ParseNotes parses free-form notes. Comments and trailing commas are
// allowed; key order is kept.
func ParseNotes(data []byte) (jsonval.Value, error) {
	v, err := jsonval.Parse(jsonc.ToJSON(data))
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%w: parsing notes: %v", catalog.ErrValidation, err)
	}
	return v, nil
}

// ReadNotesFile reads notes from a JSON or JSONC file.
func ReadNotesFile(path string) (jsonval.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := ParseNotes(data)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseFilterFlags builds a filter from command-line terms.
//
// fields are field=value terms; repeating a field makes a list (any of).
// Values are strings, so name=2024 matches the name "2024". Write
// field:=value to compare with a JSON literal (true, false, null or a number).
// jsonTerms are field.key=substring terms against JSON fields.
func ParseFilterFlags(fields, jsonTerms []string) (catalog.Filter, error) {
	filter := catalog.Filter{}

	for _, term := range fields {
		field, raw, ok := strings.Cut(term, "=")
		field, typed := strings.CutSuffix(strings.TrimSpace(field), ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("%w: filter term %q is not field=value", catalog.ErrValidation, term)
		}
		var value any = raw
		if typed {
			v, err := literal(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: filter term %q: %v", catalog.ErrValidation, term, err)
			}
			value = v
		}
		existing, seen := filter[field]
		switch list, isList := existing.([]any); {
		case !seen:
			filter[field] = value
		case isList:
			filter[field] = append(list, value)
		default:
			filter[field] = []any{existing, value}
		}
	}

	for _, term := range jsonTerms {
		path, substr, ok := strings.Cut(term, "=")
		field, key, dotted := strings.Cut(path, ".")
		if !ok || !dotted || field == "" || key == "" {
			return nil, fmt.Errorf("%w: json term %q is not field.key=substring", catalog.ErrValidation, term)
		}
		clauses, isMap := filter[field].(map[string]any)
		if _, taken := filter[field]; taken && !isMap {
			return nil, fmt.Errorf("%w: field %s used as both plain and json", catalog.ErrValidation, field)
		}
		if clauses == nil {
			clauses = map[string]any{}
			filter[field] = clauses
		}
		clauses[key] = substr
	}
	return filter, nil
}

// literal parses the value of a field:=value term.
func literal(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return nil, fmt.Errorf("%q is not true, false, null or a number", raw)
	}
	return json.Number(raw), nil
}

// ReadFilterFile loads a filter from YAML. JSON is valid YAML, so both work.
//
//	description: GWAS
//	tags: [gwas, height]
//	notes:
//	  trait: body
func ReadFilterFile(path string) (catalog.Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var filter catalog.Filter
	if err := yaml.Unmarshal(data, &filter); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", catalog.ErrValidation, path, err)
	}
	if filter == nil {
		filter = catalog.Filter{}
	}
	return filter, nil
}
