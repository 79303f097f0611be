package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/antchfx/xpath"
	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

// Document is a parsed response body that selectors can be evaluated on.
type Document interface {
	// Values returns the trimmed, non-empty text of every node the
	// expressions select, in document order.
	Values(exprs []string) ([]string, error)
	// Links returns absolute http(s) links found at or below the nodes the
	// expressions select, or in the whole document when exprs is empty.
	Links(base string, exprs []string) ([]string, error)
	// Rows evaluates cells relative to every node rows selects and returns
	// one record per row. A cell selecting nothing is left empty.
	Rows(rows string, cells []string) ([][]string, error)
}

// Parse picks an interpreter for body by its content type. JSON is parsed
// into a tree of keys and array members so the same selectors apply to it,
// XML is parsed as XML and anything else is parsed as HTML.
func Parse(contentType string, body []byte) (Document, error) {
	switch mediaType := MediaType(contentType); {
	case isJSON(mediaType):
		doc, err := parseJSON(body)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse JSON: %w", err)
		}
		return doc, nil
	case isXML(mediaType) || looksLikeXML(body):
		doc, err := parseXML(bytes.NewReader(body))
		if err != nil {
			return nil, xerrors.Errorf("failed to parse XML: %w", err)
		}
		return doc, nil
	default:
		doc, err := parseHTML(bytes.NewReader(body))
		if err != nil {
			return nil, xerrors.Errorf("failed to parse HTML: %w", err)
		}
		return doc, nil
	}
}

// MediaType strips parameters from a Content-Type header value.
func MediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isXML(mediaType string) bool {
	return mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml")
}

func looksLikeXML(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<?xml"))
}

// resolve makes hrefs absolute against base and keeps http(s) links only.
func resolve(base string, hrefs []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var links []string
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		u, err := baseURL.Parse(href)
		if err != nil {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		links = append(links, u.String())
	}
	return uniq(links)
}

func uniq(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return lo.Uniq(values)
}

func appendText(values []string, text string) []string {
	if text = strings.TrimSpace(text); text != "" {
		values = append(values, text)
	}
	return values
}

func compile(expr string) (*xpath.Expr, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, xerrors.Errorf("invalid selector %q: %w", expr, err)
	}
	return compiled, nil
}

func compileAll(exprs []string) ([]*xpath.Expr, error) {
	var compiled []*xpath.Expr
	for _, expr := range exprs {
		c, err := compile(expr)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}
