package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	githubql "github.com/shurcooL/githubv4"
	"github.com/shurcooL/graphql"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/utils"
)

const (
	retry           = 5
	maxResponseSize = 100
	maxSearches     = 10
)

type Client interface {
	Query(ctx context.Context, q interface{}, variables map[string]interface{}) error
}

// NewClient returns a GraphQL client authenticated with token. Without a
// token, requests are anonymous and GitHub rejects searches.
func NewClient(token string) *githubql.Client {
	httpClient := http.DefaultClient
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	return githubql.NewClient(httpClient)
}

type options struct {
	retry       int
	maxSearches int
	wait        func(i int) time.Duration
	logger      *zap.SugaredLogger
}

type option func(*options)

func WithRetry(retry int) option {
	return func(opts *options) { opts.retry = retry }
}

// WithMaxSearches caps the number of search terms tried per repository.
func WithMaxSearches(n int) option {
	return func(opts *options) { opts.maxSearches = n }
}

func WithWait(wait func(i int) time.Duration) option {
	return func(opts *options) { opts.wait = wait }
}

func WithLogger(logger *zap.SugaredLogger) option {
	return func(opts *options) { opts.logger = logger }
}

type Parser struct {
	*options
	client Client
}

func NewParser(client Client, opts ...option) Parser {
	o := &options{
		retry:       retry,
		maxSearches: maxSearches,
		wait:        utils.Wait,
		logger:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return Parser{options: o, client: client}
}

// FindPatches searches repo for issues and pull requests mentioning vulnID
// and returns the patch URL of every merged pull request. Each issue found
// is searched for in turn as "#N", which picks up pull requests that only
// reference the issue.
func (p Parser) FindPatches(ctx context.Context, vulnID, repo string) ([]string, error) {
	terms := []string{vulnID}
	seen := map[string]struct{}{vulnID: {}}
	patches := map[string]struct{}{}

	var links []string
	for i := 0; i < len(terms) && i < p.maxSearches; i++ {
		query := fmt.Sprintf("%s repo:%s", terms[i], repo)
		p.logger.Debugf("Querying GitHub with %q", query)

		nodes, err := p.search(ctx, query)
		if err != nil {
			if i == 0 {
				return nil, xerrors.Errorf("failed to search %s: %w", repo, err)
			}
			p.logger.Warnf("GitHub search %q failed: %s", query, err)
			continue
		}

		for _, node := range nodes {
			number := node.Issue.Number
			if node.PullRequest.Number != 0 {
				number = node.PullRequest.Number
			}
			if number == 0 {
				continue
			}

			term := fmt.Sprintf("#%d", number)
			if _, ok := seen[term]; !ok {
				p.logger.Debugf("Adding issue %s", term)
				seen[term] = struct{}{}
				terms = append(terms, term)
			}

			if !node.PullRequest.Merged || node.PullRequest.URL == "" {
				continue
			}
			link := node.PullRequest.URL + ".patch"
			if _, ok := patches[link]; ok {
				continue
			}
			p.logger.Infof("Patch found from pull %s: %s", term, link)
			patches[link] = struct{}{}
			links = append(links, link)
		}
	}
	return links, nil
}

// search returns every result of query, following pagination.
func (p Parser) search(ctx context.Context, query string) ([]SearchNode, error) {
	var nodes []SearchNode
	variables := map[string]interface{}{
		"query":  githubql.String(query),
		"total":  graphql.Int(maxResponseSize),
		"cursor": (*githubql.String)(nil),
	}
	for {
		var q SearchQuery
		var err error
		for i := 0; i <= p.retry; i++ {
			if i > 0 {
				sleep := p.wait(i)
				p.logger.Debugf("retry after %s", sleep)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(sleep):
				}
			}

			q = SearchQuery{}
			if err = p.client.Query(ctx, &q, variables); err == nil {
				break
			}
		}
		if err != nil {
			return nil, xerrors.Errorf("graphql api error: %w", err)
		}

		nodes = append(nodes, q.Search.Nodes...)
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubql.NewString(q.Search.PageInfo.EndCursor)
	}
	return nodes, nil
}
