package vulnerability

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/xerrors"
)

// ErrUnrecognized is returned when an identifier matches no known format.
var ErrUnrecognized = xerrors.New("unrecognized vulnerability identifier")

const (
	nvdURL           = "https://nvd.nist.gov/vuln/detail/%s"
	mitreURL         = "https://cve.mitre.org/cgi-bin/cvename.cgi?name=%s"
	debianTrackerURL = "https://security-tracker.debian.org/tracker/%s"
	dlaListURL       = "https://salsa.debian.org/security-tracker-team/security-tracker/-/raw/master/data/DLA/list"
	redhatURL        = "https://access.redhat.com/labs/securitydataapi/cve.json?advisory=%s"
	gentooURL        = "https://gitweb.gentoo.org/data/glsa.git/plain/%s.xml"
	osvURL           = "https://api.osv.dev/v1/vulns/%s"
)

var (
	cvePattern  = regexp.MustCompile(`^CVE-\d+-\d+$`)
	dsaPattern  = regexp.MustCompile(`^DSA-\d+(-\d+)?$`)
	dlaPattern  = regexp.MustCompile(`^DLA-\d+(-\d+)?$`)
	rhsaPattern = regexp.MustCompile(`^RHSA-\d+:\d+$`)
	glsaPattern = regexp.MustCompile(`^GLSA-\d+-\d+$`)
	ghsaPattern = regexp.MustCompile(`^GHSA(-[0-9A-Z]{4}){3}$`)

	cveField       = regexp.MustCompile(`CVE-\d+-\d+`)
	dlaHeaderStart = regexp.MustCompile(`^\[`)

	normalizer = strings.NewReplacer(" ", "-", "_", "-")
)

type classifier struct {
	pattern *regexp.Regexp
	build   func(id string) Vulnerability
}

// Order matters: the first matching classifier decides the kind.
var classifiers = []classifier{
	{pattern: cvePattern, build: newCVE},
	{pattern: dsaPattern, build: newDSA},
	{pattern: dlaPattern, build: newDLA},
	{pattern: rhsaPattern, build: newRHSA},
	{pattern: glsaPattern, build: newGLSA},
	{pattern: ghsaPattern, build: newGHSA},
}

// Normalize upper-cases an identifier and turns spaces and underscores into
// hyphens.
func Normalize(raw string) string {
	return normalizer.Replace(strings.ToUpper(strings.TrimSpace(raw)))
}

// Classify normalizes raw and returns the typed vulnerability for the first
// identifier format it matches.
func Classify(raw string) (Vulnerability, error) {
	id := Normalize(raw)
	for _, c := range classifiers {
		if c.pattern.MatchString(id) {
			return c.build(id), nil
		}
	}
	return Vulnerability{}, xerrors.Errorf("%q: %w", raw, ErrUnrecognized)
}

func newCVE(id string) Vulnerability {
	return Vulnerability{
		ID:   id,
		Kind: CVE,
		Entrypoints: []string{
			fmt.Sprintf(nvdURL, id),
			fmt.Sprintf(mitreURL, id),
			fmt.Sprintf(debianTrackerURL, id),
		},
	}
}

func newDSA(id string) Vulnerability {
	return advisory(id, fmt.Sprintf(debianTrackerURL, id), SiteSelectors{})
}

func newDLA(id string) Vulnerability {
	return advisory(id, dlaListURL, BlockScan{
		Start: regexp.MustCompile(`^\[[^\]]+\]\s+` + regexp.QuoteMeta(id) + `(\s|$)`),
		End:   dlaHeaderStart,
		Field: cveField,
	})
}

func newRHSA(id string) Vulnerability {
	return advisory(id, fmt.Sprintf(redhatURL, id), SiteSelectors{})
}

func newGLSA(id string) Vulnerability {
	return advisory(id, fmt.Sprintf(gentooURL, strings.ToLower(id)), SiteSelectors{})
}

func newGHSA(id string) Vulnerability {
	// OSV keys GitHub advisories by the lower-cased suffix.
	osvID := "GHSA-" + strings.ToLower(strings.TrimPrefix(id, "GHSA-"))
	return advisory(id, fmt.Sprintf(osvURL, osvID), KeyPath{Path: []string{"aliases"}})
}

func advisory(id, baseURL string, e Extraction) Vulnerability {
	return Vulnerability{
		ID:         id,
		Kind:       Advisory,
		BaseURL:    baseURL,
		Extraction: e,
	}
}
