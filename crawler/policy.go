package crawler

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/extract"
)

// Policy bounds and filters one crawl session. It is copied into the engine
// at construction and never changes afterwards.
type Policy struct {
	// DepthLimit is the maximum number of hops from the last seed. Zero
	// fetches the seeds only.
	DepthLimit int
	// PatchLimit is the maximum number of patches a session collects.
	PatchLimit int
	// DenyDomains are never fetched, subdomains included.
	DenyDomains []string
	// DenyPages are regular expressions of URLs that are never followed.
	DenyPages []string
	// DenyExtensions are file extensions of links that are never followed.
	DenyExtensions []string
	// ImportantDomains are fetched before other pages when possible.
	ImportantDomains []string
	// ParseDebian hands Debian security tracker CVE pages to the Debian
	// collaborator instead of extracting their links.
	ParseDebian bool
	// AllowedContentTypes are regular expressions a response media type must
	// match to be processed.
	AllowedContentTypes []string
	// Concurrency is the maximum number of fetches in flight.
	Concurrency int
	// GithubRepos are owner/name repositories searched for pull requests
	// mentioning each CVE.
	GithubRepos []string
}

func DefaultPolicy() Policy {
	return Policy{
		DepthLimit:  1,
		PatchLimit:  100,
		DenyDomains: []string{"facebook.com", "twitter.com"},
		DenyPages: []string{
			`github\.com/[^/]+/[^/]+$`,
			`github\.com/[^/]+/[^/]+/blob/`,
			`github\.com.+/releases$`,
			`github\.com.+/releases/.+?/[^/]+$`,
			`^https?://[^/]+/?$`,
			`\#.+$`,
		},
		DenyExtensions: []string{
			"7z", "bz2", "deb", "dmg", "exe", "gif", "gz", "ico", "iso", "jar", "jpeg",
			"jpg", "mp3", "mp4", "pdf", "png", "rar", "rpm", "svg", "tar", "tgz", "xz", "zip",
		},
		ParseDebian:         true,
		AllowedContentTypes: []string{"text/html", "text/plain", "application/json"},
		Concurrency:         8,
	}
}

type compiledPolicy struct {
	Policy
	denyPages    []*regexp.Regexp
	contentTypes []*regexp.Regexp
}

func (p Policy) compile() (compiledPolicy, error) {
	if p.DepthLimit < 0 {
		return compiledPolicy{}, xerrors.Errorf("depth limit must not be negative: %d", p.DepthLimit)
	}
	if p.PatchLimit <= 0 {
		return compiledPolicy{}, xerrors.Errorf("patch limit must be positive: %d", p.PatchLimit)
	}
	if p.Concurrency <= 0 {
		return compiledPolicy{}, xerrors.Errorf("concurrency must be positive: %d", p.Concurrency)
	}

	// Copy every slice so the caller cannot change the policy afterwards.
	p.DenyDomains = lowerAll(p.DenyDomains)
	p.ImportantDomains = lowerAll(p.ImportantDomains)
	p.DenyExtensions = lowerAll(p.DenyExtensions)
	p.DenyPages = slices.Clone(p.DenyPages)
	p.AllowedContentTypes = slices.Clone(p.AllowedContentTypes)
	p.GithubRepos = slices.Clone(p.GithubRepos)

	denyPages, err := compileAll(p.DenyPages)
	if err != nil {
		return compiledPolicy{}, xerrors.Errorf("invalid deny page pattern: %w", err)
	}
	contentTypes, err := compileAll(p.AllowedContentTypes)
	if err != nil {
		return compiledPolicy{}, xerrors.Errorf("invalid content type pattern: %w", err)
	}
	return compiledPolicy{Policy: p, denyPages: denyPages, contentTypes: contentTypes}, nil
}

// allowsContentType reports whether a response with the given Content-Type
// header is processed. Responses without one are not.
func (p compiledPolicy) allowsContentType(contentType string) bool {
	mediaType := extract.MediaType(contentType)
	if mediaType == "" {
		return false
	}
	for _, re := range p.contentTypes {
		if re.MatchString(mediaType) {
			return true
		}
	}
	return false
}

// denies reports whether a link is excluded by domain, page pattern or file
// extension.
func (p compiledPolicy) denies(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	if matchesDomain(u.Hostname(), p.DenyDomains) {
		return true
	}
	for _, re := range p.denyPages {
		if re.MatchString(link) {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	return ext != "" && slices.Contains(p.DenyExtensions, ext)
}

func (p compiledPolicy) priority(link string) int {
	u, err := url.Parse(link)
	if err != nil {
		return 0
	}
	if matchesDomain(u.Hostname(), p.ImportantDomains) {
		return 1
	}
	return 0
}

// matchesDomain reports whether host is one of domains or a subdomain of
// one.
func matchesDomain(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, v := range values {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(v)))
	}
	return lowered
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var compiled []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
