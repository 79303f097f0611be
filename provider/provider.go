package provider

import (
	"regexp"
)

// FormatRule rewrites the part of a URL matched by Pattern.
type FormatRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Provider describes how a code host exposes a commit as a raw diff.
type Provider struct {
	Name string

	// LinkPatterns must all match for the provider to claim a URL.
	LinkPatterns []*regexp.Regexp
	// PatchPatterns must all match for a claimed URL to be canonical already.
	PatchPatterns []*regexp.Regexp
	// FormatRules are applied in order to non-canonical claimed URLs.
	FormatRules []FormatRule
}

func (p Provider) Claims(url string) bool {
	return matchAll(p.LinkPatterns, url)
}

func (p Provider) IsCanonical(url string) bool {
	return matchAll(p.PatchPatterns, url)
}

// Format turns a claimed URL into its canonical patch form.
func (p Provider) Format(url string) string {
	if p.IsCanonical(url) {
		return url
	}
	for _, rule := range p.FormatRules {
		url = rule.Pattern.ReplaceAllLiteralString(url, rule.Replacement)
	}
	return url
}

func matchAll(patterns []*regexp.Regexp, s string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if !p.MatchString(s) {
			return false
		}
	}
	return true
}

type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) Registry {
	return Registry{providers: providers}
}

// Default returns the registry of supported code hosts, in priority order.
func Default() Registry {
	return NewRegistry(
		GitHub(),
		GitLab(),
		Bitbucket(),
		GitKernel(),
		Pagure(),
		Cgit(),
	)
}

func (r Registry) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// ClassifyLink returns the canonical patch URL for url and true if a
// provider claims it. Otherwise url is a page to follow.
func (r Registry) ClassifyLink(url string) (string, bool) {
	for _, p := range r.providers {
		if p.Claims(url) {
			return p.Format(url), true
		}
	}
	return "", false
}

func GitHub() Provider {
	return Provider{
		Name: "github",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`github\.com/[^/]+/[^/]+/`),
			regexp.MustCompile(`/(commit/[0-9a-f]{7,40}|pull/\d+)(\.patch)?$`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`\.patch$`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`$`), Replacement: ".patch"}},
	}
}

func GitLab() Provider {
	return Provider{
		Name: "gitlab",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`gitlab\.com/`),
			regexp.MustCompile(`/commit/[0-9a-f]{7,40}(\.patch)?$`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`\.patch$`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`$`), Replacement: ".patch"}},
	}
}

func Bitbucket() Provider {
	return Provider{
		Name: "bitbucket",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`bitbucket\.org/`),
			regexp.MustCompile(`/commits/[0-9a-f]{7,40}(/raw)?$`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`/raw$`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`$`), Replacement: "/raw"}},
	}
}

func GitKernel() Provider {
	return Provider{
		Name: "git.kernel.org",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`git\.kernel\.org/`),
			regexp.MustCompile(`[0-9a-f]{40}$`),
			regexp.MustCompile(`/(commit|patch)/`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`/patch/`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`/commit/`), Replacement: "/patch/"}},
	}
}

func Pagure() Provider {
	return Provider{
		Name: "pagure",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`pagure\.io/`),
			regexp.MustCompile(`/c/[0-9a-f]{7,40}(\.patch)?$`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`\.patch$`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`$`), Replacement: ".patch"}},
	}
}

// Cgit covers self-hosted cgit front ends such as git.savannah.gnu.org.
func Cgit() Provider {
	return Provider{
		Name: "cgit",
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/cgit/`),
			regexp.MustCompile(`/(commit|patch)/\?id=[0-9a-f]{7,40}$`),
		},
		PatchPatterns: []*regexp.Regexp{regexp.MustCompile(`/patch/`)},
		FormatRules:   []FormatRule{{Pattern: regexp.MustCompile(`/commit/`), Replacement: "/patch/"}},
	}
}
