package alias

import (
	"bytes"
	"context"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/extract"
	"github.com/aquasecurity/patchfinder/fetch"
	"github.com/aquasecurity/patchfinder/resource"
	"github.com/aquasecurity/patchfinder/vulnerability"
)

type options struct {
	resources resource.Registry
	logger    *zap.SugaredLogger
}

type option func(*options)

func WithResources(resources resource.Registry) option {
	return func(opts *options) { opts.resources = resources }
}

func WithLogger(logger *zap.SugaredLogger) option {
	return func(opts *options) { opts.logger = logger }
}

// Resolver turns advisories into the CVEs they cover.
type Resolver struct {
	*options
	fetcher fetch.Fetcher
}

func NewResolver(fetcher fetch.Fetcher, opts ...option) Resolver {
	o := &options{
		resources: resource.Default(),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return Resolver{options: o, fetcher: fetcher}
}

// Resolve follows advisory cross references from v until no unvisited
// advisory is left. Every advisory is fetched at most once, so cyclic
// references terminate. found, if not nil, is called for each new CVE as
// soon as it is discovered. An empty result is not an error.
func (r Resolver) Resolve(ctx context.Context, v vulnerability.Vulnerability,
	found func(vulnerability.Vulnerability)) ([]vulnerability.Vulnerability, error) {
	if v.Kind != vulnerability.Advisory {
		return nil, xerrors.Errorf("%s is not an advisory", v.ID)
	}

	var (
		worklist  = []vulnerability.Vulnerability{v}
		processed = map[string]struct{}{}
		seen      = map[string]struct{}{}
		resolved  []vulnerability.Vulnerability
	)
	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		current := worklist[0]
		worklist = worklist[1:]
		if _, ok := processed[current.ID]; ok {
			continue
		}

		candidates, err := r.candidates(ctx, current)
		processed[current.ID] = struct{}{}
		if err != nil {
			if ctx.Err() != nil {
				return resolved, ctx.Err()
			}
			r.logger.Warnf("Failed to read aliases of %s: %s", current.ID, err)
			continue
		}

		for _, candidate := range candidates {
			alias, err := vulnerability.Classify(candidate)
			if err != nil {
				continue
			}
			switch alias.Kind {
			case vulnerability.CVE:
				if _, ok := seen[alias.ID]; ok {
					continue
				}
				seen[alias.ID] = struct{}{}
				resolved = append(resolved, alias)
				if found != nil {
					found(alias)
				}
			case vulnerability.Advisory:
				if _, ok := processed[alias.ID]; !ok {
					worklist = append(worklist, alias)
				}
			}
		}
	}
	r.logger.Infof("Resolved %s to %d CVEs", v.ID, len(resolved))
	return resolved, nil
}

func (r Resolver) candidates(ctx context.Context, v vulnerability.Vulnerability) ([]string, error) {
	r.logger.Debugf("Fetching %s", v.BaseURL)
	res, err := r.fetcher.Fetch(ctx, v.BaseURL)
	if err != nil {
		return nil, xerrors.Errorf("fetch error: %w", err)
	}
	if !res.OK() {
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s", res.StatusCode, v.BaseURL)
	}

	switch e := v.Extraction.(type) {
	case vulnerability.SiteSelectors:
		doc, err := extract.Parse(res.ContentType, res.Body)
		if err != nil {
			return nil, xerrors.Errorf("parse error: %w", err)
		}
		rule := r.resources.RulesFor(v.BaseURL)
		return doc.Values(rule.Selectors(resource.ExtractData))
	case vulnerability.BlockScan:
		return extract.ScanBlock(bytes.NewReader(res.Body), e.Start, e.End, e.Field)
	case vulnerability.KeyPath:
		return extract.KeyPath(res.Body, e.Path)
	default:
		return nil, xerrors.Errorf("unsupported extraction %T", v.Extraction)
	}
}
