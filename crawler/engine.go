package crawler

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/extract"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/metrics"
	"github.com/aquasecurity/patchfinder/provider"
	"github.com/aquasecurity/patchfinder/resource"
	"github.com/aquasecurity/patchfinder/types"
	"github.com/aquasecurity/patchfinder/vulnerability"
)

// debianRoute matches the tracker pages handed to the Debian collaborator.
var debianRoute = regexp.MustCompile(`^https?://security-tracker\.debian\.org/tracker/(CVE-\d+-\d+)$`)

type DebianParser interface {
	FindPatches(ctx context.Context, vulnID string) ([]types.Patch, error)
}

type GithubParser interface {
	FindPatches(ctx context.Context, vulnID, repo string) ([]string, error)
}

type AliasResolver interface {
	Resolve(ctx context.Context, v vulnerability.Vulnerability, found func(vulnerability.Vulnerability)) ([]vulnerability.Vulnerability, error)
}

// Sink receives every accepted patch exactly once, in acceptance order.
type Sink interface {
	Write(types.Patch) error
}

type options struct {
	fetcher   fetch.Fetcher
	providers provider.Registry
	resources resource.Registry
	sink      Sink
	debian    DebianParser
	github    GithubParser
	resolver  AliasResolver
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
}

type option func(*options)

func WithFetcher(fetcher fetch.Fetcher) option {
	return func(opts *options) { opts.fetcher = fetcher }
}

func WithProviders(providers provider.Registry) option {
	return func(opts *options) { opts.providers = providers }
}

func WithResources(resources resource.Registry) option {
	return func(opts *options) { opts.resources = resources }
}

func WithSink(sink Sink) option {
	return func(opts *options) { opts.sink = sink }
}

func WithDebian(debian DebianParser) option {
	return func(opts *options) { opts.debian = debian }
}

func WithGithub(github GithubParser) option {
	return func(opts *options) { opts.github = github }
}

func WithResolver(resolver AliasResolver) option {
	return func(opts *options) { opts.resolver = resolver }
}

func WithLogger(logger *zap.SugaredLogger) option {
	return func(opts *options) { opts.logger = logger }
}

func WithMetrics(m *metrics.Metrics) option {
	return func(opts *options) { opts.metrics = m }
}

type Engine struct {
	*options
	policy compiledPolicy
}

func NewEngine(policy Policy, opts ...option) (*Engine, error) {
	compiled, err := policy.compile()
	if err != nil {
		return nil, xerrors.Errorf("invalid policy: %w", err)
	}

	o := &options{
		providers: provider.Default(),
		resources: resource.Default(),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.NewClient(fetch.WithLogger(o.logger))
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	return &Engine{options: o, policy: compiled}, nil
}

type Result struct {
	Patches []types.Patch
	Aliases []string
}

// Run crawls from v until the frontier is exhausted or the patch limit is
// reached. An advisory is first resolved to CVEs; each CVE found starts a
// fresh crawl from its entrypoints while resolution continues.
func (e *Engine) Run(ctx context.Context, v vulnerability.Vulnerability) (Result, error) {
	s := newSession(e.policy)
	results := make(chan outcome)

	var (
		aliases  <-chan vulnerability.Vulnerability
		resolved = make(chan error, 1)
	)
	switch v.Kind {
	case vulnerability.CVE:
		e.seed(s, v, false)
		resolved <- nil
	case vulnerability.Advisory:
		if e.resolver == nil {
			return Result{}, xerrors.Errorf("no alias resolver for %s", v.ID)
		}
		ch := make(chan vulnerability.Vulnerability)
		aliases = ch
		go func() {
			defer close(ch)
			_, err := e.resolver.Resolve(ctx, v, func(alias vulnerability.Vulnerability) {
				ch <- alias
			})
			resolved <- err
		}()
	default:
		return Result{}, xerrors.Errorf("unknown vulnerability kind: %s", v.Kind)
	}

	for {
		e.issue(ctx, s, results)
		if s.inFlight == 0 && aliases == nil && (s.frontier.Len() == 0 || !s.canIssue(ctx)) {
			break
		}

		select {
		case o := <-results:
			s.inFlight--
			e.apply(s, o)
		case alias, ok := <-aliases:
			if !ok {
				aliases = nil
				continue
			}
			s.aliases = append(s.aliases, alias.ID)
			e.metrics.AliasesResolved.Inc()
			e.seed(s, alias, true)
		}
	}

	result := Result{Patches: s.patches, Aliases: s.aliases}
	if err := <-resolved; err != nil && !errors.Is(err, ctx.Err()) {
		return result, xerrors.Errorf("alias resolution error: %w", err)
	}
	if s.err != nil {
		return result, s.err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// seed queues the entrypoints of a CVE, and one GitHub search per
// configured repository.
func (e *Engine) seed(s *session, v vulnerability.Vulnerability, resetDepth bool) {
	e.logger.Infof("Crawling %s", v.ID)
	for _, u := range v.Entrypoints {
		s.enqueue(unit{url: u, resetDepth: resetDepth, mode: resource.FindPatches}, nil)
	}
	if e.github == nil {
		return
	}
	for _, repo := range e.policy.GithubRepos {
		s.frontier.push(unit{kind: githubSearch, vulnID: v.ID, repo: repo, resetDepth: resetDepth}, 1)
	}
}

// issue starts fetches for queued units while the session allows it.
func (e *Engine) issue(ctx context.Context, s *session, results chan<- outcome) {
	for s.inFlight < e.policy.Concurrency && s.frontier.Len() > 0 && s.canIssue(ctx) {
		u := s.frontier.pop()
		if u.depth > e.policy.DepthLimit || s.stale(u) {
			continue
		}
		s.inFlight++
		e.metrics.UnitsIssued.Inc()
		go func(u unit) {
			results <- e.process(ctx, u)
		}(u)
	}
}

// apply folds one unit's outcome into the session. It runs on the
// coordinating goroutine only.
func (e *Engine) apply(s *session, o outcome) {
	for _, p := range o.patches {
		if s.full() {
			return
		}
		if !s.addPatch(p) {
			continue
		}
		e.logger.Infof("Found patch %s", p.Link)
		e.metrics.PatchesFound.WithLabelValues(o.source).Inc()
		if e.sink == nil {
			continue
		}
		if err := e.sink.Write(p); err != nil && s.err == nil {
			s.err = xerrors.Errorf("failed to write patch: %w", err)
		}
	}

	parent := o.unit
	for _, link := range o.follow {
		if s.full() {
			return
		}
		s.enqueue(unit{url: link, mode: parent.mode}, &parent)
	}
}

// process fetches and interprets one unit. It runs on its own goroutine and
// must not touch the session.
func (e *Engine) process(ctx context.Context, u unit) outcome {
	o := outcome{unit: u, source: "crawl"}
	if u.kind == githubSearch {
		return e.searchGithub(ctx, u)
	}

	e.logger.Debugf("Fetching %s (depth %d)", u.url, u.depth)
	res, err := e.fetcher.Fetch(ctx, u.url)
	if err != nil {
		e.drop(u, metrics.DropFetchError, err)
		return o
	}
	if !res.OK() {
		e.drop(u, metrics.DropStatus, xerrors.Errorf("status code %d", res.StatusCode))
		return o
	}
	if !e.policy.allowsContentType(res.ContentType) {
		e.drop(u, metrics.DropContentType, xerrors.Errorf("content type %q", res.ContentType))
		return o
	}

	rule := e.resources.RulesFor(u.url)
	e.metrics.PagesFetched.WithLabelValues(rule.Name).Inc()

	// URL routes win over content-type dispatch.
	if m := debianRoute.FindStringSubmatch(u.url); m != nil && e.policy.ParseDebian && e.debian != nil {
		return e.parseDebian(ctx, u, m[1])
	}

	doc, err := extract.Parse(res.ContentType, res.Body)
	if err != nil {
		e.drop(u, metrics.DropParseError, err)
		return o
	}
	links, err := doc.Links(u.url, rule.Selectors(u.mode))
	if err != nil {
		e.drop(u, metrics.DropParseError, err)
		return o
	}

	for _, link := range links {
		if e.policy.denies(link) {
			continue
		}
		if canonical, ok := e.providers.ClassifyLink(link); ok {
			o.patches = append(o.patches, types.Patch{Link: canonical, ReachingPath: u.url})
			continue
		}
		o.follow = append(o.follow, link)
	}
	return o
}

func (e *Engine) parseDebian(ctx context.Context, u unit, vulnID string) outcome {
	o := outcome{unit: u, source: "debian"}
	patches, err := e.debian.FindPatches(ctx, vulnID)
	if err != nil {
		e.logger.Warnf("Debian parser failed for %s: %s", vulnID, err)
		e.metrics.ResponsesDropped.WithLabelValues(metrics.DropCollaborator).Inc()
		return o
	}
	o.patches = patches
	return o
}

func (e *Engine) searchGithub(ctx context.Context, u unit) outcome {
	o := outcome{unit: u, source: "github"}
	links, err := e.github.FindPatches(ctx, u.vulnID, u.repo)
	if err != nil {
		e.logger.Warnf("GitHub search failed for %s in %s: %s", u.vulnID, u.repo, err)
		e.metrics.ResponsesDropped.WithLabelValues(metrics.DropCollaborator).Inc()
		return o
	}
	for _, link := range links {
		o.patches = append(o.patches, types.Patch{Link: link, ReachingPath: "https://github.com/" + u.repo})
	}
	return o
}

func (e *Engine) drop(u unit, reason string, err error) {
	e.logger.Debugf("Dropped %s: %s", u.url, err)
	e.metrics.ResponsesDropped.WithLabelValues(reason).Inc()
}
