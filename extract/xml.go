package extract

import (
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// linkAttrs are the attributes XML feeds use for references; GLSA uses
// <uri link="...">.
var linkAttrs = []string{"href", "link"}

type xmlDocument struct {
	root *xmlquery.Node
}

func parseXML(r io.Reader) (xmlDocument, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return xmlDocument{}, err
	}
	return xmlDocument{root: root}, nil
}

func (d xmlDocument) Values(exprs []string) ([]string, error) {
	var values []string
	for _, expr := range exprs {
		compiled, err := compile(expr)
		if err != nil {
			return nil, err
		}
		nodes := xmlquery.QuerySelectorAll(d.root, compiled)
		for _, n := range nodes {
			values = appendText(values, n.InnerText())
		}
	}
	return values, nil
}

// Links collects href attributes and text nodes holding absolute URLs, as
// XML documents rarely carry anchors.
func (d xmlDocument) Links(base string, exprs []string) ([]string, error) {
	regions := []*xmlquery.Node{d.root}
	if len(exprs) > 0 {
		regions = nil
		for _, expr := range exprs {
			compiled, err := compile(expr)
			if err != nil {
				return nil, err
			}
			nodes := xmlquery.QuerySelectorAll(d.root, compiled)
			regions = append(regions, nodes...)
		}
	}

	var hrefs []string
	for _, region := range regions {
		hrefs = collectXMLLinks(region, hrefs)
	}
	return resolve(base, hrefs), nil
}

func (d xmlDocument) Rows(rows string, cells []string) ([][]string, error) {
	rowExpr, err := compile(rows)
	if err != nil {
		return nil, err
	}
	cellExprs, err := compileAll(cells)
	if err != nil {
		return nil, err
	}

	var records [][]string
	for _, row := range xmlquery.QuerySelectorAll(d.root, rowExpr) {
		record := make([]string, len(cellExprs))
		for i, expr := range cellExprs {
			if n := xmlquery.QuerySelector(row, expr); n != nil {
				record[i] = strings.TrimSpace(n.InnerText())
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func collectXMLLinks(n *xmlquery.Node, hrefs []string) []string {
	switch n.Type {
	case xmlquery.ElementNode:
		for _, name := range linkAttrs {
			if href := n.SelectAttr(name); href != "" {
				hrefs = append(hrefs, href)
			}
		}
	case xmlquery.TextNode, xmlquery.CharDataNode:
		text := strings.TrimSpace(n.Data)
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			hrefs = append(hrefs, text)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		hrefs = collectXMLLinks(c, hrefs)
	}
	return hrefs
}
