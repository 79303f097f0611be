package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/patchfinder/resource"
)

func TestRegistry_RulesFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://github.com/python/cpython/commit/abcdef0", want: "github"},
		{url: "https://cve.mitre.org/cgi-bin/cvename.cgi?name=CVE-2018-20406", want: "mitre"},
		{url: "https://nvd.nist.gov/vuln/detail/CVE-2018-20406", want: "nvd"},
		{url: "https://security-tracker.debian.org/tracker/CVE-2018-20406", want: "debian-tracker-cve"},
		{url: "https://security-tracker.debian.org/tracker/DSA-4444-1", want: "debian-tracker-dsa"},
		{url: "https://security-tracker.debian.org/tracker/source-package/python3.7", want: "default"},
		{url: "https://www.openwall.com/lists/oss-security/2019/01/01/1", want: "openwall"},
		{url: "https://lists.fedoraproject.org/archives/list/package-announce@lists.fedoraproject.org/message/X/", want: "fedora-lists"},
		{url: "https://lists.debian.org/debian-lts-announce/2019/05/msg00001.html", want: "debian-lists"},
		{url: "https://bugzilla.redhat.com/show_bug.cgi?id=1665044", want: "redhat-bugzilla"},
		{url: "https://seclists.org/oss-sec/2019/q1/1", want: "seclists"},
		{url: "https://access.redhat.com/labs/securitydataapi/cve.json?advisory=RHSA-2016:0611", want: "redhat-securitydataapi"},
		{url: "https://gitweb.gentoo.org/data/glsa.git/plain/glsa-200602-01.xml", want: "gentoo-glsa"},
		{url: "https://example.com/advisory", want: "default"},
		{url: "https://evil.example/?u=https://github.com/", want: "default"},
	}
	registry := resource.Default()
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.RulesFor(tt.url).Name)
		})
	}
}

func TestRule_Selectors(t *testing.T) {
	rule := resource.Default().RulesFor("https://security-tracker.debian.org/tracker/CVE-2019-10192")

	assert.Equal(t, []string{"//pre/a"}, rule.Selectors(resource.FindPatches))
	assert.Equal(t, "//table[3]//tr[td]", rule.Rows)
	assert.Equal(t, []string{"td[1]", "td[4]"}, rule.Selectors(resource.ExtractData))
}

func TestDefault_Independent(t *testing.T) {
	a := resource.Default()
	b := resource.Default()

	rule := a.RulesFor("https://example.com/")
	rule.LinkSelectors[0] = "//changed"

	assert.Equal(t, []string{"//body//a"}, b.RulesFor("https://example.com/").LinkSelectors)
}
