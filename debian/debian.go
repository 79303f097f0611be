package debian

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/extract"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/resource"
	"github.com/aquasecurity/patchfinder/types"
	"github.com/aquasecurity/patchfinder/utils"
)

const (
	trackerURL  = "https://security-tracker.debian.org/tracker/"
	snapshotURL = "https://snapshot.debian.org/"
	patchesDir  = "debian/patches"
)

// Downloader retrieves source archives. Directories come back unpacked,
// files decompressed.
type Downloader interface {
	DownloadToTempDir(ctx context.Context, src string) (string, error)
	DownloadToTempFile(ctx context.Context, src string) (string, error)
}

type options struct {
	fetcher     fetch.Fetcher
	downloader  Downloader
	resources   resource.Registry
	trackerURL  string
	snapshotURL string
	fs          afero.Fs
	logger      *zap.SugaredLogger
}

type option func(*options)

func WithFetcher(fetcher fetch.Fetcher) option {
	return func(opts *options) { opts.fetcher = fetcher }
}

func WithDownloader(downloader Downloader) option {
	return func(opts *options) { opts.downloader = downloader }
}

func WithResources(resources resource.Registry) option {
	return func(opts *options) { opts.resources = resources }
}

func WithTrackerURL(url string) option {
	return func(opts *options) { opts.trackerURL = url }
}

func WithSnapshotURL(url string) option {
	return func(opts *options) { opts.snapshotURL = url }
}

func WithFs(fs afero.Fs) option {
	return func(opts *options) { opts.fs = fs }
}

func WithLogger(logger *zap.SugaredLogger) option {
	return func(opts *options) { opts.logger = logger }
}

// Parser finds the patches Debian applies for a CVE in the source packages
// that fix it.
type Parser struct {
	*options
}

func NewParser(opts ...option) Parser {
	o := &options{
		fetcher:     fetch.NewClient(),
		downloader:  utils.NewDownloader(fetch.DefaultUserAgent),
		resources:   resource.Default(),
		trackerURL:  trackerURL,
		snapshotURL: snapshotURL,
		fs:          afero.NewOsFs(),
		logger:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return Parser{options: o}
}

type fixedPackage struct {
	Name    string
	Version string
}

// FindPatches returns the members of debian/patches whose name contains
// vulnID, in every source package the security tracker lists as fixed.
// Per-package failures are only reported when nothing was found.
func (p Parser) FindPatches(ctx context.Context, vulnID string) ([]types.Patch, error) {
	pkgs, err := p.fixedPackages(ctx, vulnID)
	if err != nil {
		return nil, xerrors.Errorf("failed to find fixed packages: %w", err)
	}
	p.logger.Debugf("Fixed packages for %s: %v", vulnID, pkgs)

	var (
		patches []types.Patch
		errs    error
	)
	for _, pkg := range pkgs {
		found, err := p.packagePatches(ctx, vulnID, pkg)
		if err != nil {
			errs = multierror.Append(errs, xerrors.Errorf("%s %s: %w", pkg.Name, pkg.Version, err))
			continue
		}
		patches = append(patches, found...)
	}

	if len(patches) == 0 && errs != nil {
		return nil, errs
	}
	if errs != nil {
		p.logger.Warnf("Some Debian packages were skipped: %s", errs)
	}
	return patches, nil
}

// fixedPackages reads the package and fixed version of every row of the
// tracker's fixed table. Rows without a version number, such as
// "(not affected)", are skipped.
func (p Parser) fixedPackages(ctx context.Context, vulnID string) ([]fixedPackage, error) {
	u := p.trackerURL + vulnID
	res, err := p.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch %s: %w", u, err)
	}
	if !res.OK() {
		return nil, xerrors.Errorf("failed to fetch %s: status code %d", u, res.StatusCode)
	}

	doc, err := extract.Parse(res.ContentType, res.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse %s: %w", u, err)
	}
	rule := p.resources.RulesFor(trackerURL + vulnID)
	rows, err := doc.Rows(rule.Rows, rule.Selectors(resource.ExtractData))
	if err != nil {
		return nil, xerrors.Errorf("failed to extract fixed versions: %w", err)
	}

	var pkgs []fixedPackage
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		pkg := fixedPackage{Name: row[0], Version: row[1]}
		if pkg.Name == "" || pkg.Version == "" || pkg.Version[0] < '0' || pkg.Version[0] > '9' {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return lo.Uniq(pkgs), nil
}

func (p Parser) packagePatches(ctx context.Context, vulnID string, pkg fixedPackage) ([]types.Patch, error) {
	archive, err := p.archiveURL(ctx, pkg)
	if err != nil {
		return nil, err
	}
	p.logger.Infof("Looking for patches in %s", archive)

	var members []string
	if strings.HasSuffix(archive, ".diff.gz") {
		members, err = p.diffMembers(ctx, archive, vulnID)
	} else {
		members, err = p.tarMembers(ctx, archive, vulnID)
	}
	if err != nil {
		return nil, err
	}

	var patches []types.Patch
	for _, m := range members {
		p.logger.Infof("Found patch: %s in %s", m, archive)
		patches = append(patches, types.Patch{Link: m, ReachingPath: archive})
	}
	return patches, nil
}

// archiveURL looks up the Debian source archive of pkg on its snapshot
// page: either a .debian.tar.* (3.0 quilt) or a .diff.gz (1.0) file.
func (p Parser) archiveURL(ctx context.Context, pkg fixedPackage) (string, error) {
	page := fmt.Sprintf("%spackage/%s/%s/", p.snapshotURL, url.PathEscape(pkg.Name), url.PathEscape(pkg.Version))
	res, err := p.fetcher.Fetch(ctx, page)
	if err != nil {
		return "", xerrors.Errorf("failed to fetch %s: %w", page, err)
	}
	if !res.OK() {
		return "", xerrors.Errorf("failed to fetch %s: status code %d", page, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return "", xerrors.Errorf("failed to parse %s: %w", page, err)
	}

	name := archiveName(pkg)
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h, _ := s.Attr("href")
		base, err := url.PathUnescape(path.Base(h))
		if err != nil || !name.MatchString(base) {
			return true
		}
		href = h
		return false
	})
	if href == "" {
		return "", xerrors.Errorf("no source archive on %s", page)
	}

	base, err := url.Parse(page)
	if err != nil {
		return "", xerrors.Errorf("invalid snapshot URL: %w", err)
	}
	ref, err := base.Parse(href)
	if err != nil {
		return "", xerrors.Errorf("invalid archive link %q: %w", href, err)
	}
	return ref.String(), nil
}

// archiveName matches the file names of the Debian archive of pkg. File
// names never carry the epoch.
func archiveName(pkg fixedPackage) *regexp.Regexp {
	version := pkg.Version
	if _, v, ok := strings.Cut(version, ":"); ok {
		version = v
	}
	return regexp.MustCompile(fmt.Sprintf(`^%s_%s\.(debian\.tar\..+|diff\.gz)$`,
		regexp.QuoteMeta(pkg.Name), regexp.QuoteMeta(version)))
}

func (p Parser) tarMembers(ctx context.Context, archive, vulnID string) ([]string, error) {
	dir, err := p.downloader.DownloadToTempDir(ctx, archive)
	if err != nil {
		return nil, xerrors.Errorf("failed to download %s: %w", archive, err)
	}
	defer p.fs.RemoveAll(dir)

	root := filepath.Join(dir, filepath.FromSlash(patchesDir))
	if ok, _ := afero.DirExists(p.fs, root); !ok {
		return nil, nil
	}

	var members []string
	err = afero.Walk(p.fs, root, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.Contains(info.Name(), vulnID) {
			return nil
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		members = append(members, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("walk error: %w", err)
	}
	return members, nil
}

// diffMembers reads the file headers of a decompressed .diff.gz. Paths in
// it are prefixed by the source directory, e.g.
// "+++ redis-5.0.3/debian/patches/CVE-2019-10192.patch".
func (p Parser) diffMembers(ctx context.Context, archive, vulnID string) ([]string, error) {
	file, err := p.downloader.DownloadToTempFile(ctx, archive)
	if err != nil {
		return nil, xerrors.Errorf("failed to download %s: %w", archive, err)
	}
	defer p.fs.Remove(file)

	f, err := p.fs.Open(file)
	if err != nil {
		return nil, xerrors.Errorf("unable to open %s: %w", file, err)
	}
	defer f.Close()

	var members []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "+++ ") {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(line, "+++ "), "\t")
		if _, rest, ok := strings.Cut(strings.TrimSpace(name), "/"); ok {
			name = rest
		}
		if strings.HasPrefix(name, patchesDir+"/") && strings.Contains(path.Base(name), vulnID) {
			members = append(members, name)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, xerrors.Errorf("scan error: %w", err)
	}
	return lo.Uniq(members), nil
}
