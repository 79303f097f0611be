package resource

import (
	"regexp"
)

// Mode selects which selector set of a rule is used on a page.
type Mode int

const (
	// FindPatches extracts links to classify as patches or pages to follow.
	FindPatches Mode = iota
	// ExtractData extracts plain values such as advisory cross references.
	ExtractData
)

func (m Mode) String() string {
	if m == ExtractData {
		return "extract-data"
	}
	return "find-patches"
}

// Rule holds the selectors used on every page whose URL matches Pattern.
// Empty LinkSelectors mean links are taken from the whole document.
// When Rows is set, DataSelectors are evaluated relative to each row it
// selects.
type Rule struct {
	Name          string
	Pattern       *regexp.Regexp
	LinkSelectors []string
	Rows          string
	DataSelectors []string
}

func (r Rule) Selectors(mode Mode) []string {
	if mode == ExtractData {
		return r.DataSelectors
	}
	return r.LinkSelectors
}

type Registry struct {
	rules    []Rule
	fallback Rule
}

// NewRegistry returns a registry trying rules in order and falling back to
// fallback when none matches.
func NewRegistry(fallback Rule, rules ...Rule) Registry {
	return Registry{rules: rules, fallback: fallback}
}

// RulesFor returns the first rule matching url.
func (r Registry) RulesFor(url string) Rule {
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(url) {
			return rule
		}
	}
	return r.fallback
}

var defaultFallback = Rule{
	Name:          "default",
	Pattern:       regexp.MustCompile(`.*`),
	LinkSelectors: []string{"//body//a"},
}

// Default returns the per-site rules for the pages a crawl usually reaches.
func Default() Registry {
	return NewRegistry(defaultFallback.clone(),
		Rule{
			Name:          "github",
			Pattern:       regexp.MustCompile(`^https?://github\.com/`),
			LinkSelectors: []string{"//div[contains(@class, 'commit-message')]//a"},
		},
		Rule{
			Name:          "mitre",
			Pattern:       regexp.MustCompile(`^https?://cve\.mitre\.org/`),
			LinkSelectors: []string{`//*[@id="GeneratedTable"]/table/tr[7]/td//a`},
		},
		Rule{
			Name:          "nvd",
			Pattern:       regexp.MustCompile(`^https?://nvd\.nist\.gov/`),
			LinkSelectors: []string{`//table[@data-testid="vuln-hyperlinks-table"]/tbody//a`},
		},
		Rule{
			Name:          "debian-tracker-cve",
			Pattern:       regexp.MustCompile(`^https?://security-tracker\.debian\.org/tracker/CVE-\d+-\d+$`),
			LinkSelectors: []string{"//pre/a"},
			Rows:          "//table[3]//tr[td]",
			DataSelectors: []string{"td[1]", "td[4]"},
		},
		Rule{
			Name:          "debian-tracker-dsa",
			Pattern:       regexp.MustCompile(`^https?://security-tracker\.debian\.org/tracker/D[SL]A-\d+(-\d+)?$`),
			DataSelectors: []string{"//tr[td//b[text()='References']]/td[2]//a/text()"},
		},
		Rule{
			Name:          "openwall",
			Pattern:       regexp.MustCompile(`^https?://www\.openwall\.com/lists/oss-security`),
			LinkSelectors: []string{"//pre/a"},
		},
		Rule{
			Name:          "fedora-lists",
			Pattern:       regexp.MustCompile(`^https?://lists\.fedoraproject\.org/`),
			LinkSelectors: []string{"//div[contains(@class, 'email-body')]//a"},
		},
		Rule{
			Name:          "debian-lists",
			Pattern:       regexp.MustCompile(`^https?://lists\.debian\.org/`),
			LinkSelectors: []string{"//pre/a"},
		},
		Rule{
			Name:    "redhat-bugzilla",
			Pattern: regexp.MustCompile(`^https?://bugzilla\.redhat\.com/show_bug\.cgi`),
			LinkSelectors: []string{
				"//pre[contains(@class, 'bz_comment_text')]//a",
				"//table[@id='external_bugs_table']//a",
			},
		},
		Rule{
			Name:          "seclists",
			Pattern:       regexp.MustCompile(`^https?://seclists\.org/`),
			LinkSelectors: []string{"//pre/a"},
		},
		Rule{
			Name:          "redhat-securitydataapi",
			Pattern:       regexp.MustCompile(`^https?://access\.redhat\.com/labs/securitydataapi/cve\.json\?advisory=`),
			DataSelectors: []string{"//CVE/text()"},
		},
		Rule{
			Name:          "gentoo-glsa",
			Pattern:       regexp.MustCompile(`^https?://gitweb\.gentoo\.org/data/glsa\.git/plain/`),
			DataSelectors: []string{"//references//uri/text()"},
		},
	)
}

func (r Rule) clone() Rule {
	r.LinkSelectors = append([]string(nil), r.LinkSelectors...)
	r.DataSelectors = append([]string(nil), r.DataSelectors...)
	return r
}
