package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/parnurzeal/gorequest"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/patchfinder/utils"
)

const (
	DefaultUserAgent = "Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 5.1)"
	defaultTimeout   = 30 * time.Second
	defaultRetry     = 2
)

// Response is a fetched page. Non-2xx responses are returned as well; it is
// up to the caller to decide what to do with them.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Fetcher is the single suspension point of a crawl: everything that needs
// a page goes through it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

type options struct {
	userAgent       string
	timeout         time.Duration
	retry           int
	followRedirects bool
	wait            func(i int) time.Duration
	logger          *zap.SugaredLogger
}

type option func(*options)

func WithUserAgent(userAgent string) option {
	return func(opts *options) { opts.userAgent = userAgent }
}

func WithTimeout(timeout time.Duration) option {
	return func(opts *options) { opts.timeout = timeout }
}

func WithRetry(retry int) option {
	return func(opts *options) { opts.retry = retry }
}

func WithFollowRedirects(follow bool) option {
	return func(opts *options) { opts.followRedirects = follow }
}

func WithWait(wait func(i int) time.Duration) option {
	return func(opts *options) { opts.wait = wait }
}

func WithLogger(logger *zap.SugaredLogger) option {
	return func(opts *options) { opts.logger = logger }
}

type Client struct {
	*options
}

func NewClient(opts ...option) Client {
	o := &options{
		userAgent: DefaultUserAgent,
		timeout:   defaultTimeout,
		retry:     defaultRetry,
		wait:      utils.Wait,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return Client{options: o}
}

// Fetch GETs url, retrying transport errors and 5xx/429 responses.
func (c Client) Fetch(ctx context.Context, url string) (Response, error) {
	var (
		res Response
		err error
	)
	for i := 0; i <= c.retry; i++ {
		if i > 0 {
			sleep := c.wait(i)
			c.logger.Debugf("Retry %s after %s", url, sleep)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(sleep):
			}
		}
		if err = ctx.Err(); err != nil {
			return Response{}, err
		}

		res, err = c.fetch(url)
		if err == nil && !retryable(res.StatusCode) {
			return res, nil
		}
	}
	if err != nil {
		return Response{}, xerrors.Errorf("failed to fetch %s: %w", url, err)
	}
	return res, nil
}

func (c Client) fetch(url string) (Response, error) {
	req := gorequest.New().Get(url).
		Timeout(c.timeout).
		Set("User-Agent", c.userAgent)
	if !c.followRedirects {
		req = req.RedirectPolicy(func(gorequest.Request, []gorequest.Request) error {
			return http.ErrUseLastResponse
		})
	}

	resp, body, errs := req.EndBytes()
	if len(errs) > 0 {
		return Response{}, xerrors.Errorf("HTTP error. url: %s, err: %w", url, errs[0])
	}
	return Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
