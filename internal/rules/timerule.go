package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketkeeper/internal/value"
)

func init() {
	register("generic.ResolveAtTime", func() Rule { return &ResolveAtTime{} })
}

// Timestamp decodes the datetime strings rule specs carry, accepting RFC
// 3339 as well as the space-separated form older specs used.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// ResolveAtTime resolves True once the given instant has passed.
type ResolveAtTime struct {
	ResolveAt Timestamp `json:"resolve_at"`
}

func (r *ResolveAtTime) Eval(ctx context.Context, env *Env) (value.Resolution, error) {
	return value.Bool(!env.now().Before(r.ResolveAt.Time)), nil
}

func (r *ResolveAtTime) ExplainAbstract(indent int) string {
	return bullet(indent, fmt.Sprintf("Resolve True if the current time is past %s, otherwise resolve False", r.ResolveAt.UTC().Format(time.RFC3339)))
}

func (r *ResolveAtTime) ExplainSpecific(ctx context.Context, env *Env, indent, sigFigs int) (string, error) {
	return specificDefault(ctx, r, env, indent, sigFigs)
}
