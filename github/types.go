package github

import (
	githubql "github.com/shurcooL/githubv4"
)

// SearchQuery is an issue search. GitHub returns issues and pull requests
// alike for type ISSUE.
type SearchQuery struct {
	Search Search `graphql:"search(query: $query, type: ISSUE, first: $total, after: $cursor)"`
}

type Search struct {
	Nodes    []SearchNode
	PageInfo PageInfo
}

type SearchNode struct {
	Issue       Issue       `graphql:"... on Issue"`
	PullRequest PullRequest `graphql:"... on PullRequest"`
}

type Issue struct {
	Number int
	URL    string
}

type PullRequest struct {
	Number int
	URL    string
	Merged bool
}

type PageInfo struct {
	EndCursor   githubql.String
	HasNextPage bool
}
