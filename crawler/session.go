package crawler

import (
	"context"

	"github.com/aquasecurity/patchfinder/resource"
	"github.com/aquasecurity/patchfinder/types"
)

type unitKind int

const (
	pageFetch unitKind = iota
	githubSearch
)

// unit is one piece of crawl work: a page to fetch, or a repository search
// for a vulnerability.
type unit struct {
	kind       unitKind
	url        string
	depth      int
	resetDepth bool
	mode       resource.Mode

	vulnID string
	repo   string
}

// outcome is what processing a unit produced. The coordinator decides what
// to keep.
type outcome struct {
	unit    unit
	source  string
	patches []types.Patch
	follow  []string
}

// session is the state of one Run. Only the coordinating goroutine touches
// it.
type session struct {
	policy   compiledPolicy
	patches  []types.Patch
	links    map[string]struct{}
	queued   map[string]int
	frontier frontier
	inFlight int
	aliases  []string
	err      error
}

func newSession(policy compiledPolicy) *session {
	return &session{
		policy: policy,
		links:  map[string]struct{}{},
		queued: map[string]int{},
	}
}

func (s *session) full() bool {
	return len(s.patches) >= s.policy.PatchLimit
}

func (s *session) canIssue(ctx context.Context) bool {
	return ctx.Err() == nil && s.err == nil && !s.full()
}

// addPatch records p unless its link was already accepted or the session is
// full.
func (s *session) addPatch(p types.Patch) bool {
	if s.full() {
		return false
	}
	if _, ok := s.links[p.Link]; ok {
		return false
	}
	s.links[p.Link] = struct{}{}
	s.patches = append(s.patches, p)
	return true
}

// enqueue queues u as a child of parent, or as a seed when parent is nil.
// A URL is queued again only when reached at a smaller depth than before,
// which keeps the number of fetches finite on cyclic link graphs.
func (s *session) enqueue(u unit, parent *unit) {
	if s.full() {
		return
	}
	switch {
	case u.resetDepth, parent == nil:
		u.depth = 0
	default:
		u.depth = parent.depth + 1
	}
	if u.depth > s.policy.DepthLimit {
		return
	}
	if depth, ok := s.queued[u.url]; ok && depth <= u.depth {
		return
	}
	s.queued[u.url] = u.depth
	s.frontier.push(u, s.policy.priority(u.url))
}

// stale reports whether u was queued again at a smaller depth since it was
// pushed.
func (s *session) stale(u unit) bool {
	if u.kind != pageFetch {
		return false
	}
	depth, ok := s.queued[u.url]
	return ok && depth != u.depth
}
