package vulnerability

import (
	"regexp"
)

type Kind int

const (
	CVE Kind = iota
	Advisory
)

func (k Kind) String() string {
	switch k {
	case CVE:
		return "CVE"
	case Advisory:
		return "Advisory"
	}
	return "unknown"
}

// Vulnerability is a classified identifier. A CVE carries the pages a crawl
// starts from; an advisory carries the single document its CVE aliases are
// read from and how to read them.
type Vulnerability struct {
	ID          string
	Kind        Kind
	Entrypoints []string

	BaseURL    string
	Extraction Extraction
}

// Extraction tells the alias resolver how to pull candidate identifiers out
// of an advisory document.
type Extraction interface {
	extraction()
}

// SiteSelectors reads the data selectors registered for the advisory's
// base URL in the resource registry.
type SiteSelectors struct{}

// BlockScan scans a plain-text list. Lines following the first Start match
// are read until End matches; every Field match within them is a candidate.
type BlockScan struct {
	Start *regexp.Regexp
	End   *regexp.Regexp
	Field *regexp.Regexp
}

// KeyPath walks a JSON document along the given object keys.
type KeyPath struct {
	Path []string
}

func (SiteSelectors) extraction() {}
func (BlockScan) extraction()     {}
func (KeyPath) extraction()       {}
