// Package tracker reads issue and pull request state from GitHub so that
// development-progress rules can settle markets about code actually shipping.
package tracker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const envToken = "GITHUB_ACCESS_TOKEN"

// Issue is the slice of issue state the rules need.
type Issue struct {
	Number int
	State  string
	// PullNumber is the linked pull request number, 0 when the issue has
	// none. On GitHub every PR is also an issue, so an issue fetched by a
	// PR's number reports itself here.
	PullNumber int
}

// PullRequest is the slice of pull request state the rules need.
type PullRequest struct {
	Number   int
	Merged   bool
	MergedAt time.Time
}

// Fetcher is the read surface rules evaluate against. Production code uses
// the GitHub-backed Client; tests substitute fixtures.
type Fetcher interface {
	Issue(ctx context.Context, owner, repo string, number int) (*Issue, error)
	PullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
}

// Client fetches from the GitHub REST API. An access token raises the rate
// limit and grants private-repo access but is not required.
type Client struct {
	gh *github.Client
}

func NewClient(ctx context.Context) *Client {
	var hc = oauth2.NewClient(ctx, nil)
	if token := os.Getenv(envToken); token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{gh: github.NewClient(hc)}
}

func (c *Client) Issue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	iss, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting issue %s/%s#%d: %w", owner, repo, number, err)
	}
	out := &Issue{Number: number, State: iss.GetState()}
	if iss.IsPullRequest() {
		out.PullNumber = number
	}
	return out, nil
}

func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	out := &PullRequest{Number: number, Merged: pr.GetMerged()}
	if at := pr.GetMergedAt(); !at.IsZero() {
		out.MergedAt = at.Time
	}
	return out, nil
}
