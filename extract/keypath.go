package extract

import (
	"bytes"

	"github.com/antchfx/jsonquery"
	"golang.org/x/xerrors"
)

// KeyPath follows path through nested JSON objects and returns the scalar
// values it ends on. Arrays met along the way are walked element by element.
func KeyPath(body []byte, path []string) ([]string, error) {
	doc, err := jsonquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Errorf("failed to decode JSON: %w", err)
	}

	var values []string
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		switch {
		case n.Type != jsonquery.ElementNode:
		case n.Data == "":
			// member of a top-level array
			values = walk(n, path, values)
		case len(path) > 0 && n.Data == path[0]:
			values = walk(n, path[1:], values)
		}
	}
	return uniq(values), nil
}

func walk(n *jsonquery.Node, path []string, values []string) []string {
	switch v := n.Value().(type) {
	case []interface{}:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			values = walk(c, path, values)
		}
		return values
	case map[string]interface{}:
		if len(path) == 0 {
			return values
		}
		child := n.SelectElement(path[0])
		if child == nil {
			return values
		}
		return walk(child, path[1:], values)
	default:
		if len(path) > 0 {
			return values
		}
		return appendScalar(values, v)
	}
}
