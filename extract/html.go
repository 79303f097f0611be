package extract

import (
	"io"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

var anchors = xpath.MustCompile("descendant-or-self::a[@href]|descendant-or-self::area[@href]")

type htmlDocument struct {
	root *html.Node
}

func parseHTML(r io.Reader) (htmlDocument, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return htmlDocument{}, err
	}
	return htmlDocument{root: root}, nil
}

func (d htmlDocument) Values(exprs []string) ([]string, error) {
	var values []string
	for _, expr := range exprs {
		compiled, err := compile(expr)
		if err != nil {
			return nil, err
		}
		nodes := htmlquery.QuerySelectorAll(d.root, compiled)
		for _, n := range nodes {
			values = appendText(values, htmlquery.InnerText(n))
		}
	}
	return values, nil
}

func (d htmlDocument) Links(base string, exprs []string) ([]string, error) {
	regions := []*html.Node{d.root}
	if len(exprs) > 0 {
		regions = nil
		for _, expr := range exprs {
			compiled, err := compile(expr)
			if err != nil {
				return nil, err
			}
			nodes := htmlquery.QuerySelectorAll(d.root, compiled)
			regions = append(regions, nodes...)
		}
	}

	var hrefs []string
	for _, region := range regions {
		for _, a := range htmlquery.QuerySelectorAll(region, anchors) {
			hrefs = append(hrefs, htmlquery.SelectAttr(a, "href"))
		}
	}
	return resolve(d.baseURL(base), hrefs), nil
}

func (d htmlDocument) Rows(rows string, cells []string) ([][]string, error) {
	rowExpr, err := compile(rows)
	if err != nil {
		return nil, err
	}
	cellExprs, err := compileAll(cells)
	if err != nil {
		return nil, err
	}

	var records [][]string
	for _, row := range htmlquery.QuerySelectorAll(d.root, rowExpr) {
		record := make([]string, len(cellExprs))
		for i, expr := range cellExprs {
			if n := htmlquery.QuerySelector(row, expr); n != nil {
				record[i] = strings.TrimSpace(htmlquery.InnerText(n))
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// baseURL honours a <base href> element when the page declares one.
func (d htmlDocument) baseURL(responseURL string) string {
	nodes, err := htmlquery.QueryAll(d.root, "//head/base[@href]")
	if err != nil || len(nodes) == 0 {
		return responseURL
	}
	if links := resolve(responseURL, []string{htmlquery.SelectAttr(nodes[0], "href")}); len(links) > 0 {
		return links[0]
	}
	return responseURL
}
