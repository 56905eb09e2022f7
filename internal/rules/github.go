package rules

import (
	"context"
	"fmt"
	"time"

	"marketkeeper/internal/tracker"
	"marketkeeper/internal/value"
)

func init() {
	register("github.ResolveWithPR", func() Rule { return &ResolveWithPR{} })
	register("github.ResolveToPR", func() Rule { return &ResolveToPR{} })
	register("github.ResolveToPRDelta", func() Rule { return &ResolveToPRDelta{} })
}

// issueRef identifies a GitHub issue or pull request.
type issueRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

func (r issueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// pullRequest fetches the linked pull request, or nil when the issue has
// none.
func (r issueRef) pullRequest(ctx context.Context, env *Env) (*tracker.Issue, *tracker.PullRequest, error) {
	if env.Tracker == nil {
		return nil, nil, fmt.Errorf("issue reference %s: no tracker configured", r)
	}
	issue, err := env.Tracker.Issue(ctx, r.Owner, r.Repo, r.Number)
	if err != nil {
		return nil, nil, err
	}
	if issue.PullNumber == 0 {
		return issue, nil, nil
	}
	pr, err := env.Tracker.PullRequest(ctx, r.Owner, r.Repo, issue.PullNumber)
	if err != nil {
		return nil, nil, err
	}
	return issue, pr, nil
}

// ResolveWithPR resolves True once the issue is no longer open or its pull
// request has merged.
type ResolveWithPR struct {
	issueRef
}

func (r *ResolveWithPR) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	issue, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(issue.State != "open" || (pr != nil && pr.Merged)), nil
}

func (r *ResolveWithPR) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("If the GitHub PR %s was merged in the past.", r.issueRef))
}

func (r *ResolveWithPR) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	issue, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return "", err
	}
	merged := pr != nil && pr.Merged
	out := bullet(indent, fmt.Sprintf("If either of the conditions below are True (-> %s)", pyBool(issue.State != "open" || merged)))
	out += bullet(indent+1, fmt.Sprintf("If the state of the pull request is not open (-> %s)", issue.State))
	out += bullet(indent+1, fmt.Sprintf("If the pull request is merged (-> %s)", pyBool(merged)))
	return out, nil
}

// ResolveToPR resolves to True if the pull request is merged, otherwise
// False.
type ResolveToPR struct {
	issueRef
}

func (r *ResolveToPR) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	_, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	return value.Bool(pr != nil && pr.Merged), nil
}

func (r *ResolveToPR) ExplainAbstract(indent int) string {
	out := bullet(indent, fmt.Sprintf("Resolves based on GitHub PR %s", r.issueRef))
	out += bullet(indent+1, "If the PR is merged, resolve to YES.")
	out += bullet(indent+1, "Otherwise, resolve to NO.")
	return out
}

func (r *ResolveToPR) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	_, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return "", err
	}
	return bullet(indent, fmt.Sprintf("Is the pull request merged? (-> %s -> %s)", mergeTime(pr), pyBool(pr != nil && pr.Merged))), nil
}

// ResolveToPRDelta resolves to the fractional number of days between start
// and the merge date or, if not merged, the market's maximum.
type ResolveToPRDelta struct {
	issueRef
	Start Timestamp `json:"start"`
}

func (r *ResolveToPRDelta) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	_, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return value.Abstain(), err
	}
	if pr == nil || !pr.Merged || pr.MergedAt.IsZero() {
		if env.Market == nil {
			return value.Abstain(), fmt.Errorf("pull request delta rule needs a market for its maximum")
		}
		return value.Number(env.Market.Max), nil
	}
	delta := pr.MergedAt.Sub(r.Start.Time)
	return value.Number(delta.Seconds() / (24 * 60 * 60)), nil
}

func (r *ResolveToPRDelta) ExplainAbstract(indent int) string {
	out := bullet(indent, fmt.Sprintf("Resolves based on GitHub PR %s", r.issueRef))
	out += bullet(indent+1, fmt.Sprintf("If the PR is merged, resolve to the number of days between %s and the resolution time.", r.Start.UTC().Format(time.RFC3339)))
	out += bullet(indent+1, "Otherwise, resolve to MAX.")
	return out
}

func (r *ResolveToPRDelta) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	_, pr, err := r.pullRequest(ctx, env)
	if err != nil {
		return "", err
	}
	raw, err := r.Eval(ctx, env)
	if err != nil {
		return "", err
	}
	return bullet(indent, fmt.Sprintf("How long after %s was the pull request merged? (-> %s -> %s)",
		r.Start.UTC().Format(time.RFC3339), mergeTime(pr), value.RoundSigFigs(raw.Num(), sigFigs))), nil
}

func mergeTime(pr *tracker.PullRequest) string {
	if pr == nil || pr.MergedAt.IsZero() {
		return "Not yet merged"
	}
	return pr.MergedAt.UTC().Format(time.RFC3339)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
