package codec

import (
	"errors"
	"strings"

	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

var errNotObject = errors.New("value is not a JSON object")

// ParseDocument decodes a wire string into a document. An empty string is an
// empty document. Anything that is not a JSON object fails with a ParseError
// naming field.
func ParseDocument(field, raw string) (resource.Document, error) {
	if strings.TrimSpace(raw) == "" {
		return resource.Document{}, nil
	}
	return parseObject(field, raw)
}

// ParseOptionalDocument is ParseDocument for documents the caller may omit:
// an empty string or JSON null yields nil.
func ParseOptionalDocument(field, raw string) (resource.Document, error) {
	t := strings.TrimSpace(raw)
	if t == "" || t == "null" {
		return nil, nil
	}
	return parseObject(field, raw)
}

func parseObject(field, raw string) (resource.Document, error) {
	var v any
	if err := JSONDocument.Unmarshal([]byte(raw), &v); err != nil {
		return nil, resource.NewParseError(field, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, resource.NewParseError(field, errNotObject)
	}
	return resource.Document(m), nil
}

// FormatDocument serializes a document; nil renders as "{}".
func FormatDocument(doc resource.Document) (string, error) {
	if doc == nil {
		return "{}", nil
	}
	b, err := JSONDocument.Marshal(map[string]any(doc))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
