package alias_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/alias"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/vulnerability"
)

type page struct {
	contentType string
	body        []byte
	status      int
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]page
	counts map[string]int
}

func newFakeFetcher(pages map[string]page) *fakeFetcher {
	return &fakeFetcher{pages: pages, counts: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counts[url]++
	p, ok := f.pages[url]
	if !ok {
		return fetch.Response{}, xerrors.Errorf("connection refused: %s", url)
	}
	status := p.status
	if status == 0 {
		status = 200
	}
	return fetch.Response{URL: url, StatusCode: status, ContentType: p.contentType, Body: p.body}, nil
}

func testdata(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func trackerPage(refs ...string) []byte {
	var links []string
	for _, ref := range refs {
		links = append(links, fmt.Sprintf(`<a href="/tracker/%s">%s</a>`, ref, ref))
	}
	return []byte(fmt.Sprintf(`<html><body><table>
<tr><td><b>Name</b></td><td>advisory</td></tr>
<tr><td><b>References</b></td><td>%s</td></tr>
</table></body></html>`, strings.Join(links, ", ")))
}

func trackerURL(id string) string {
	return "https://security-tracker.debian.org/tracker/" + id
}

func ids(vulns []vulnerability.Vulnerability) []string {
	var got []string
	for _, v := range vulns {
		got = append(got, v.ID)
	}
	return got
}

func classify(t *testing.T, id string) vulnerability.Vulnerability {
	t.Helper()
	v, err := vulnerability.Classify(id)
	require.NoError(t, err)
	return v
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pages map[string]page
		want  []string
	}{
		{
			name:  "debian security advisory",
			input: "DSA-4444-1",
			pages: map[string]page{
				trackerURL("DSA-4444-1"): {contentType: "text/html", body: testdata(t, "dsa-4444-1.html")},
			},
			want: []string{"CVE-2018-12126", "CVE-2018-12127", "CVE-2018-12130", "CVE-2019-11091"},
		},
		{
			name:  "gentoo advisory referencing another advisory",
			input: "GLSA-200602-01",
			pages: map[string]page{
				"https://gitweb.gentoo.org/data/glsa.git/plain/glsa-200602-01.xml": {contentType: "text/plain", body: testdata(t, "glsa-200602-01.xml")},
				"https://gitweb.gentoo.org/data/glsa.git/plain/glsa-200601-06.xml": {contentType: "text/plain", body: testdata(t, "glsa-200601-06.xml")},
			},
			want: []string{"CVE-2005-4048"},
		},
		{
			name:  "red hat advisory",
			input: "RHSA-2016:0611",
			pages: map[string]page{
				"https://access.redhat.com/labs/securitydataapi/cve.json?advisory=RHSA-2016:0611": {contentType: "application/json", body: testdata(t, "rhsa-2016-0611.json")},
			},
			want: []string{"CVE-2015-5370", "CVE-2016-2110"},
		},
		{
			name:  "debian lts advisory",
			input: "DLA-3799-1",
			pages: map[string]page{
				"https://salsa.debian.org/security-tracker-team/security-tracker/-/raw/master/data/DLA/list": {contentType: "text/plain", body: testdata(t, "dla-list.txt")},
			},
			want: []string{"CVE-2024-2398", "CVE-2023-46218"},
		},
		{
			name:  "github advisory",
			input: "GHSA-2r3v-q9x3-7g46",
			pages: map[string]page{
				"https://api.osv.dev/v1/vulns/GHSA-2r3v-q9x3-7g46": {contentType: "application/json", body: testdata(t, "ghsa-2r3v-q9x3-7g46.json")},
			},
			want: []string{"CVE-2018-11776"},
		},
		{
			name:  "no aliases yet",
			input: "DSA-9999-1",
			pages: map[string]page{
				trackerURL("DSA-9999-1"): {contentType: "text/html", body: trackerPage()},
			},
		},
		{
			name:  "advisory page missing",
			input: "DSA-9998-1",
			pages: map[string]page{
				trackerURL("DSA-9998-1"): {status: 404},
			},
		},
		{
			name:  "unreachable referenced advisory is skipped",
			input: "DSA-1000-1",
			pages: map[string]page{
				trackerURL("DSA-1000-1"): {contentType: "text/html", body: trackerPage("DSA-1001-1", "CVE-2020-0001", "not-an-id")},
			},
			want: []string{"CVE-2020-0001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(tt.pages)
			r := alias.NewResolver(f)

			var streamed []string
			got, err := r.Resolve(context.Background(), classify(t, tt.input), func(v vulnerability.Vulnerability) {
				streamed = append(streamed, v.ID)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, tt.want, streamed)
			for _, v := range got {
				assert.Equal(t, vulnerability.CVE, v.Kind)
				assert.Len(t, v.Entrypoints, 3)
			}
		})
	}
}

func TestResolver_ResolveCycles(t *testing.T) {
	// DSA-1 -> DSA-2 -> DSA-3 -> DSA-1, with DSA-2 also pointing at itself.
	pages := map[string]page{
		trackerURL("DSA-1-1"): {contentType: "text/html", body: trackerPage("DSA-2-1", "CVE-2021-0001")},
		trackerURL("DSA-2-1"): {contentType: "text/html", body: trackerPage("DSA-2-1", "DSA-3-1", "CVE-2021-0002")},
		trackerURL("DSA-3-1"): {contentType: "text/html", body: trackerPage("DSA-1-1", "CVE-2021-0001", "CVE-2021-0003")},
	}
	f := newFakeFetcher(pages)
	r := alias.NewResolver(f)

	got, err := r.Resolve(context.Background(), classify(t, "DSA-1-1"), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CVE-2021-0001", "CVE-2021-0002", "CVE-2021-0003"}, ids(got))

	for url, count := range f.counts {
		assert.Equal(t, 1, count, url)
	}
	assert.Len(t, f.counts, 3)
}

func TestResolver_ResolveNotAdvisory(t *testing.T) {
	r := alias.NewResolver(newFakeFetcher(nil))
	_, err := r.Resolve(context.Background(), classify(t, "CVE-2018-20406"), nil)
	assert.Error(t, err)
}

func TestResolver_ResolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := alias.NewResolver(newFakeFetcher(nil))
	_, err := r.Resolve(ctx, classify(t, "DSA-4444-1"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
