package utils_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/patchfinder/testutil"
	"github.com/aquasecurity/patchfinder/utils"
)

func newFileServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	tarball := testutil.TarGz(t, map[string]string{"debian/patches/CVE-2019-10192.patch": "test"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.debian.tar.gz"), tarball, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.diff.gz"), testutil.Gzip(t, "test"), 0o644))

	ts := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(ts.Close)
	return ts
}

func TestDownloadToTempDir(t *testing.T) {
	tests := []struct {
		name         string
		filePath     string
		wantFileName string
		want         string
		wantErr      string
	}{
		{
			name:         "happy path",
			filePath:     "/test.debian.tar.gz",
			wantFileName: "debian/patches/CVE-2019-10192.patch",
			want:         "test",
		},
		{
			name:     "sad path",
			filePath: "/unknown.debian.tar.gz",
			wantErr:  "bad response code: 404",
		},
	}
	ts := newFileServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir, err := utils.NewDownloader("patchfinder-test").DownloadToTempDir(context.Background(), ts.URL+tt.filePath)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer os.RemoveAll(tmpDir)

			got, err := os.ReadFile(filepath.Join(tmpDir, tt.wantFileName))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDownloadToTempFile(t *testing.T) {
	tests := []struct {
		name     string
		filePath string
		want     string
		wantErr  string
	}{
		{
			name:     "happy path",
			filePath: "/test.diff.gz",
			want:     "test",
		},
		{
			name:     "sad path",
			filePath: "/unknown.diff.gz",
			wantErr:  "bad response code: 404",
		},
	}
	ts := newFileServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile, err := utils.NewDownloader("").DownloadToTempFile(context.Background(), ts.URL+tt.filePath)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer os.Remove(tmpFile)

			got, err := os.ReadFile(tmpFile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWait(t *testing.T) {
	for i := 1; i <= 3; i++ {
		got := utils.Wait(i)
		assert.GreaterOrEqual(t, got, time.Duration(i*i)*time.Second)
		assert.Less(t, got, time.Duration(i*i+10)*time.Second)
	}
}
