// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-activity-extractor/internal/errors"
	"github-activity-extractor/internal/model"
)

const defaultPerPage = 100

// Client is a wrapper around the go-github client.
type Client struct {
	gh      *github.Client
	logger  *slog.Logger
	perPage int

	mu    sync.Mutex
	quota model.Quota
}

type clientOptions struct {
	baseURL string
	perPage int
	rate    float64
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL points the client at a GitHub Enterprise (or test) API endpoint.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithPerPage sets the page size used for list endpoints.
func WithPerPage(n int) Option {
	return func(o *clientOptions) { o.perPage = n }
}

// WithRequestRate caps outgoing requests per second. Zero disables pacing.
func WithRequestRate(perSecond float64) Option {
	return func(o *clientOptions) { o.rate = perSecond }
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := clientOptions{perPage: defaultPerPage}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	if o.rate > 0 {
		tc.Transport = newPacedTransport(tc.Transport, o.rate)
	}

	gh := github.NewClient(tc)
	if o.baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", o.baseURL, err)
		}
	}

	return &Client{
		gh:      gh,
		logger:  logger,
		perPage: o.perPage,
	}, nil
}

// GetRepository fetches repository details and translates them to our internal model.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	c.observe(resp)
	if err != nil {
		return nil, c.wrapError(err, "get repository")
	}
	return toInternalRepository(repo), nil
}

// WalkCommits calls fn for every commit of the default branch, newest first.
// It handles API pagination transparently.
func (c *Client) WalkCommits(ctx context.Context, repo model.RepoRef, fn func(model.Commit) error) error {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", repo.Owner, "repo", repo.Name, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		c.observe(resp)
		if err != nil {
			return c.wrapError(err, "list commits")
		}

		for _, commit := range commits {
			if err := fn(toInternalCommit(commit)); err != nil {
				return err
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// WalkIssues calls fn for every issue in any state, pull requests included.
// Closed issues whose list payload lacks the closer are loaded individually.
func (c *Client) WalkIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error {
	return c.walkIssues(ctx, repo, true, fn)
}

// ListIssues calls fn for every issue as returned by the list endpoint.
// ClosedBy is left unset when the list payload lacks it.
func (c *Client) ListIssues(ctx context.Context, repo model.RepoRef, fn func(model.Issue) error) error {
	return c.walkIssues(ctx, repo, false, fn)
}

func (c *Client) walkIssues(ctx context.Context, repo model.RepoRef, complete bool, fn func(model.Issue) error) error {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		c.logger.Debug("Fetching issues page", "owner", repo.Owner, "repo", repo.Name, "page", opts.Page)

		issues, resp, err := c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		c.observe(resp)
		if err != nil {
			return c.wrapError(err, "list issues")
		}

		for _, issue := range issues {
			if complete && issue.GetState() == "closed" && issue.ClosedBy == nil {
				issue, err = c.getIssue(ctx, repo, issue.GetNumber())
				if err != nil {
					return err
				}
			}
			if err := fn(toInternalIssue(issue)); err != nil {
				return err
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Client) getIssue(ctx context.Context, repo model.RepoRef, number int) (*github.Issue, error) {
	issue, resp, err := c.gh.Issues.Get(ctx, repo.Owner, repo.Name, number)
	c.observe(resp)
	if err != nil {
		return nil, c.wrapError(err, fmt.Sprintf("get issue #%d", number))
	}
	return issue, nil
}

// WalkPullRequests calls fn for every pull request in any state.
// Each pull request is loaded individually because the list payload omits
// the commit count and the merger.
func (c *Client) WalkPullRequests(ctx context.Context, repo model.RepoRef, fn func(model.PullRequest) error) error {
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		c.logger.Debug("Fetching pull requests page", "owner", repo.Owner, "repo", repo.Name, "page", opts.Page)

		pulls, resp, err := c.gh.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		c.observe(resp)
		if err != nil {
			return c.wrapError(err, "list pull requests")
		}

		for _, summary := range pulls {
			pull, presp, err := c.gh.PullRequests.Get(ctx, repo.Owner, repo.Name, summary.GetNumber())
			c.observe(presp)
			if err != nil {
				return c.wrapError(err, fmt.Sprintf("get pull request #%d", summary.GetNumber()))
			}
			if err := fn(toInternalPullRequest(pull)); err != nil {
				return err
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// WalkIssueComments calls fn for every comment on the given issue, oldest first.
func (c *Client) WalkIssueComments(ctx context.Context, repo model.RepoRef, number int, fn func(model.Comment) error) error {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: c.perPage},
	}

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, repo.Owner, repo.Name, number, opts)
		c.observe(resp)
		if err != nil {
			return c.wrapError(err, fmt.Sprintf("list comments of issue #%d", number))
		}

		for _, comment := range comments {
			if err := fn(toInternalComment(number, comment)); err != nil {
				return err
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// Quota returns the rate limit reported by the most recent API response.
func (c *Client) Quota() model.Quota {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quota
}

// FetchQuota asks the API for the current core rate limit.
// The rate_limit endpoint does not count against the quota.
func (c *Client) FetchQuota(ctx context.Context) (model.Quota, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return model.Quota{}, c.wrapError(err, "get rate limit")
	}
	core := limits.GetCore()
	if core == nil {
		return c.Quota(), nil
	}

	q := model.Quota{Limit: core.Limit, Remaining: core.Remaining, Reset: core.Reset.Time}
	c.mu.Lock()
	c.quota = q
	c.mu.Unlock()
	return q, nil
}

// observe records the rate limit headers of resp.
func (c *Client) observe(resp *github.Response) {
	if resp == nil || resp.Response == nil || resp.Rate.Limit == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quota = model.Quota{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, op string) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: %w", op, &custom_errors.RateLimitError{
			ResetAt: rateLimitErr.Rate.Reset.Time,
			Limit:   rateLimitErr.Rate.Limit,
		})
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w", op, &custom_errors.RateLimitError{
			ResetAt: time.Now().Add(abuseErr.GetRetryAfter()),
		})
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &custom_errors.APIError{
			Op:         op,
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			apiErr.Kind = custom_errors.ErrUnauthorized
		case http.StatusNotFound:
			apiErr.Kind = custom_errors.ErrNotFound
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", op, err)
}
