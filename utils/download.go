package utils

import (
	"context"
	"net/http"
	"os"

	getter "github.com/hashicorp/go-getter"
	"golang.org/x/xerrors"
)

// Downloader fetches archives over HTTP(S) with go-getter, which unpacks them
// by file extension (.tar.xz, .tar.gz, .gz, ...).
type Downloader struct {
	header http.Header
}

func NewDownloader(userAgent string) Downloader {
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return Downloader{header: header}
}

// DownloadToTempDir unpacks the archive at src into a new temporary
// directory and returns its path.
func (d Downloader) DownloadToTempDir(ctx context.Context, src string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "patchfinder")
	if err != nil {
		return "", xerrors.Errorf("failed to create a temp dir: %w", err)
	}

	// go-getter doesn't allow destination to exist.It needs to be removed once.
	// https://github.com/hashicorp/go-getter/blob/7b99c311a18a8bb679bc7ff3a830a65029afef9b/module_test.go#L18-L28
	if err = os.RemoveAll(tmpDir); err != nil {
		return "", xerrors.Errorf("failed to remove %s: %w", tmpDir, err)
	}

	if err = d.download(ctx, src, tmpDir, getter.ClientModeDir); err != nil {
		return "", xerrors.Errorf("download error: %w", err)
	}
	return tmpDir, nil
}

// DownloadToTempFile stores the (decompressed) file at src in a new
// temporary file and returns its path.
func (d Downloader) DownloadToTempFile(ctx context.Context, src string) (string, error) {
	f, err := os.CreateTemp("", "patchfinder")
	if err != nil {
		return "", xerrors.Errorf("failed to create a temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", xerrors.Errorf("close error: %w", err)
	}

	if err = d.download(ctx, src, f.Name(), getter.ClientModeFile); err != nil {
		return "", xerrors.Errorf("download error: %w", err)
	}
	return f.Name(), nil
}

func (d Downloader) download(ctx context.Context, src, dst string, mode getter.ClientMode) error {
	pwd, err := os.Getwd()
	if err != nil {
		return xerrors.Errorf("unable to get the current dir: %w", err)
	}

	// Sources come from scraped pages, so only plain HTTP(S) getters are
	// enabled.
	httpGetter := &getter.HttpGetter{Netrc: false, Header: d.header.Clone()}
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: mode,
		Getters: map[string]getter.Getter{
			"http":  httpGetter,
			"https": httpGetter,
		},
	}

	if err = client.Get(); err != nil {
		return xerrors.Errorf("failed to download: %w", err)
	}
	return nil
}
