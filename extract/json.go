package extract

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/antchfx/jsonquery"
)

// jsonDocument exposes a JSON body as a tree: object keys become named
// elements and array members become unnamed elements, so "//aliases/*"
// selects every alias.
type jsonDocument struct {
	root *jsonquery.Node
}

func parseJSON(body []byte) (jsonDocument, error) {
	root, err := jsonquery.Parse(bytes.NewReader(body))
	if err != nil {
		return jsonDocument{}, err
	}
	return jsonDocument{root: root}, nil
}

func (d jsonDocument) Values(exprs []string) ([]string, error) {
	var values []string
	for _, expr := range exprs {
		compiled, err := compile(expr)
		if err != nil {
			return nil, err
		}
		for _, n := range jsonquery.QuerySelectorAll(d.root, compiled) {
			values = appendScalars(values, n)
		}
	}
	return values, nil
}

// Links collects string values holding absolute URLs.
func (d jsonDocument) Links(base string, exprs []string) ([]string, error) {
	regions := []*jsonquery.Node{d.root}
	if len(exprs) > 0 {
		regions = nil
		for _, expr := range exprs {
			compiled, err := compile(expr)
			if err != nil {
				return nil, err
			}
			regions = append(regions, jsonquery.QuerySelectorAll(d.root, compiled)...)
		}
	}

	var hrefs []string
	for _, region := range regions {
		hrefs = collectJSONLinks(region, hrefs)
	}
	return resolve(base, hrefs), nil
}

func (d jsonDocument) Rows(rows string, cells []string) ([][]string, error) {
	rowExpr, err := compile(rows)
	if err != nil {
		return nil, err
	}
	cellExprs, err := compileAll(cells)
	if err != nil {
		return nil, err
	}

	var records [][]string
	for _, row := range jsonquery.QuerySelectorAll(d.root, rowExpr) {
		record := make([]string, len(cellExprs))
		for i, expr := range cellExprs {
			if n := jsonquery.QuerySelector(row, expr); n != nil {
				record[i] = strings.Join(appendScalars(nil, n), " ")
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func collectJSONLinks(n *jsonquery.Node, hrefs []string) []string {
	if n.Type == jsonquery.TextNode {
		if s, ok := n.Value().(string); ok {
			s = strings.TrimSpace(s)
			if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
				hrefs = append(hrefs, s)
			}
		}
		return hrefs
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		hrefs = collectJSONLinks(c, hrefs)
	}
	return hrefs
}

// appendScalars appends the string and number values at or below n. Text
// nodes hold a printed copy of their value, so scalars are read from the
// element owning them. Nulls and booleans are skipped.
func appendScalars(values []string, n *jsonquery.Node) []string {
	switch n.Type {
	case jsonquery.TextNode:
		if n.Parent == nil {
			return values
		}
		return appendScalar(values, n.Parent.Value())
	case jsonquery.ElementNode:
		switch n.Value().(type) {
		case map[string]interface{}, []interface{}:
		default:
			return appendScalar(values, n.Value())
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		values = appendScalars(values, c)
	}
	return values
}

func appendScalar(values []string, v interface{}) []string {
	switch v := v.(type) {
	case string:
		return appendText(values, v)
	case float64:
		return append(values, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return values
}
