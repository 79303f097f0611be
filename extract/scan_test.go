package extract_test

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/patchfinder/extract"
)

func TestScanBlock(t *testing.T) {
	list := readTestdata(t, "dla-list.txt")
	cve := regexp.MustCompile(`CVE-\d+-\d+`)
	header := regexp.MustCompile(`^\[`)

	tests := []struct {
		name  string
		start *regexp.Regexp
		field *regexp.Regexp
		want  []string
	}{
		{
			name:  "middle block",
			start: regexp.MustCompile(`^\[[^\]]+\]\s+DLA-3799-1(\s|$)`),
			field: cve,
			want:  []string{"CVE-2024-2398", "CVE-2023-46218"},
		},
		{
			name:  "last block runs to end of input",
			start: regexp.MustCompile(`^\[[^\]]+\]\s+DLA-3798-1(\s|$)`),
			field: cve,
			want:  []string{"CVE-2024-3333"},
		},
		{
			name:  "capture group selects package and version",
			start: regexp.MustCompile(`^\[[^\]]+\]\s+DLA-3800-1(\s|$)`),
			field: regexp.MustCompile(`^\s+\[buster\] - (\S+ \S+)`),
			want:  []string{"libfoo 1.2-3+deb10u1"},
		},
		{
			name:  "missing block",
			start: regexp.MustCompile(`DLA-0000-1`),
			field: cve,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.ScanBlock(bytes.NewReader(list), tt.start, header, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyPath(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		path    []string
		want    []string
		wantErr bool
	}{
		{
			name: "osv aliases",
			body: readTestdata(t, "ghsa-2r3v-q9x3-7g46.json"),
			path: []string{"aliases"},
			want: []string{"CVE-2018-11776"},
		},
		{
			name: "through arrays",
			body: readTestdata(t, "ghsa-2r3v-q9x3-7g46.json"),
			path: []string{"references", "type"},
			want: []string{"ADVISORY", "WEB"},
		},
		{
			name: "top level array",
			body: readTestdata(t, "rhsa-2016-0611.json"),
			path: []string{"CVE"},
			want: []string{"CVE-2015-5370", "CVE-2016-2110"},
		},
		{
			name: "numbers",
			body: []byte(`{"a": {"b": [1, 2.5]}}`),
			path: []string{"a", "b"},
			want: []string{"1", "2.5"},
		},
		{
			name: "path stops at scalar",
			body: []byte(`{"a": "x"}`),
			path: []string{"a", "b"},
		},
		{
			name: "missing key",
			body: []byte(`{"a": "x"}`),
			path: []string{"z"},
		},
		{
			name:    "broken json",
			body:    []byte(`{"a": `),
			path:    []string{"a"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.KeyPath(tt.body, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
