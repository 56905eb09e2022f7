package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"marketkeeper/internal/manifold"
	"marketkeeper/internal/rules"
	"marketkeeper/internal/store"
)

func newAddCmd(app *App) *cobra.Command {
	var (
		url, slug, id string
		checkRate     time.Duration
		notes         string
		resolveWhen   []string
		resolveTo     []string
		useRound      bool
		useCurrent    bool
		relDate       string
		pullRequest   string
		pullBinary    bool
		randomSeed    string
		randomIndex   bool
		indexSize     int
		randomRounds  int
		file          string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Start tracking a market",
		Long: "Start tracking a market, identified by URL, slug, or id. Rules can be " +
			"given as raw JSON specs or assembled from the shorthand flags.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if file != "" {
				return addFromFile(ctx, app, file)
			}

			data, err := fetchMarket(ctx, app.Client, url, slug, id)
			if err != nil {
				return err
			}

			doResolve, err := parseSpecs(resolveWhen)
			if err != nil {
				return fmt.Errorf("--resolve-when: %w", err)
			}
			toResolve, err := parseSpecs(resolveTo)
			if err != nil {
				return fmt.Errorf("--resolve-to: %w", err)
			}

			var date *time.Time
			if relDate != "" {
				parsed, err := parseRelDate(relDate)
				if err != nil {
					return err
				}
				date = &parsed
			}

			if randomIndex {
				kwargs := map[string]any{"seed": seedValue(randomSeed), "rounds": randomRounds}
				if indexSize > 0 {
					kwargs["size"] = indexSize
				}
				toResolve = append(toResolve, mustSpec("generic.ResolveRandomIndex", kwargs))
			}
			if useRound {
				toResolve = append(toResolve, mustSpec("manifold.this.RoundValueRule", nil))
			}
			if useCurrent {
				toResolve = append(toResolve, mustSpec("manifold.this.CurrentValueRule", nil))
			}
			if pullRequest != "" {
				owner, repo, number, err := parsePullRequest(pullRequest)
				if err != nil {
					return err
				}
				ref := map[string]any{"owner": owner, "repo": repo, "number": number}
				doResolve = append(doResolve, mustSpec("github.ResolveWithPR", ref))
				switch {
				case date != nil:
					withStart := map[string]any{"owner": owner, "repo": repo, "number": number,
						"start": date.UTC().Format(time.RFC3339)}
					toResolve = append(toResolve, mustSpec("github.ResolveToPRDelta", withStart))
				case pullBinary:
					toResolve = append(toResolve, mustSpec("github.ResolveToPR", ref))
				default:
					return fmt.Errorf("--pull-request needs either --rel-date or --pull-binary")
				}
			}

			if len(doResolve) == 0 {
				if date != nil {
					doResolve = append(doResolve, mustSpec("generic.ResolveAtTime",
						map[string]any{"resolve_at": date.UTC().Format(time.RFC3339)}))
				} else {
					doResolve = append(doResolve, mustSpec("manifold.this.ThisMarketClosed", nil))
				}
			}
			if len(toResolve) == 0 {
				// Triggers without a value rule settle to the market's
				// current value.
				toResolve = append(toResolve, mustSpec("manifold.this.CurrentValueRule", nil))
			}

			rec := &store.Record{
				MarketID:    data.ID,
				Question:    data.Question,
				OutcomeType: string(data.OutcomeType),
				URL:         data.URL,
				DoResolve:   doResolve,
				ResolveTo:   toResolve,
				Notes:       notes,
				CheckRate:   checkRate,
			}
			if rec.CheckRate == 0 {
				rec.CheckRate = app.Cfg.Schedule.DefaultCheckRate.Duration
			}
			if err := validateRecord(rec); err != nil {
				return err
			}

			rowID, err := app.Store.Add(rec)
			if err != nil {
				return err
			}
			fmt.Printf("Successfully added as ID %d!\n", rowID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "Market URL")
	cmd.Flags().StringVarP(&slug, "slug", "s", "", "Market slug")
	cmd.Flags().StringVarP(&id, "id", "i", "", "Market id")
	cmd.Flags().DurationVarP(&checkRate, "check-rate", "c", 0, "How often to check this market")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes stored with the market")
	cmd.Flags().StringArrayVar(&resolveWhen, "resolve-when", nil, `Trigger rule as JSON, e.g. '["manifold.this.ThisMarketClosed", {}]'`)
	cmd.Flags().StringArrayVar(&resolveTo, "resolve-to", nil, "Value rule as JSON")
	cmd.Flags().BoolVar(&useRound, "round", false, "Resolve to round(MKT)")
	cmd.Flags().BoolVar(&useCurrent, "current", false, "Resolve to the current market value")
	cmd.Flags().StringVar(&relDate, "rel-date", "", `Relevant date as "year/month/day" or "year-month-day"`)
	cmd.Flags().StringVar(&pullRequest, "pull-request", "", `GitHub pull request as "owner/repo/number"`)
	cmd.Flags().BoolVar(&pullBinary, "pull-binary", false, "Resolve YES/NO on the pull request merging")
	cmd.Flags().StringVar(&randomSeed, "random-seed", "", "Seed for random resolution rules")
	cmd.Flags().BoolVar(&randomIndex, "random-index", false, "Resolve to a seeded random answer index")
	cmd.Flags().IntVar(&indexSize, "index-size", 0, "Fixed range size for --random-index")
	cmd.Flags().IntVar(&randomRounds, "random-rounds", 1, "Number of draws to burn before taking one")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Add multiple markets from a YAML file")
	return cmd
}

func fetchMarket(ctx context.Context, client *manifold.Client, url, slug, id string) (*manifold.MarketData, error) {
	switch {
	case url != "":
		return client.MarketByURL(ctx, url)
	case slug != "":
		return client.MarketBySlug(ctx, slug)
	case id != "":
		return client.MarketByID(ctx, id)
	default:
		return nil, fmt.Errorf("one of --url, --slug, or --id is required")
	}
}

// parseSpecs decodes raw JSON rule specs, checking each one actually builds.
func parseSpecs(raw []string) ([]rules.Spec, error) {
	out := make([]rules.Spec, 0, len(raw))
	for _, r := range raw {
		var s rules.Spec
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			return nil, err
		}
		if _, err := rules.Decode(s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func mustSpec(name string, kwargs map[string]any) rules.Spec {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	encoded, err := json.Marshal(kwargs)
	if err != nil {
		panic(err)
	}
	return rules.Spec{Name: name, Kwargs: encoded}
}

// validateRecord decodes the stored rules once so a broken spec is rejected
// at add time, not during a scan.
func validateRecord(rec *store.Record) error {
	if _, err := rules.DecodeAll(rec.DoResolve); err != nil {
		return fmt.Errorf("trigger rules: %w", err)
	}
	if _, err := rules.DecodeAll(rec.ResolveTo); err != nil {
		return fmt.Errorf("value rules: %w", err)
	}
	return nil
}

func parseRelDate(raw string) (time.Time, error) {
	sections := strings.Split(raw, "/")
	if len(sections) == 1 {
		sections = strings.Split(raw, "-")
	}
	if len(sections) != 3 {
		return time.Time{}, fmt.Errorf("cannot parse date %q", raw)
	}
	parts := make([]int, 3)
	for i, s := range sections {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse date %q: %w", raw, err)
		}
		parts[i] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC), nil
}

func parsePullRequest(raw string) (owner, repo string, number int, err error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf(`--pull-request must be "owner/repo/number", got %q`, raw)
	}
	number, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("pull request number: %w", err)
	}
	return parts[0], parts[1], number, nil
}

// seedValue keeps integer-looking seeds as integers so the draw matches a
// spec written with a numeric seed.
func seedValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// bulkFile is the YAML layout for adding several markets at once.
type bulkFile struct {
	Markets []bulkMarket `yaml:"markets"`
}

type bulkMarket struct {
	URL         string     `yaml:"url"`
	Slug        string     `yaml:"slug"`
	ID          string     `yaml:"id"`
	Notes       string     `yaml:"notes"`
	CheckRate   string     `yaml:"check_rate"`
	ResolveWhen []yamlRule `yaml:"resolve_when"`
	ResolveTo   []yamlRule `yaml:"resolve_to"`
}

type yamlRule struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args"`
}

func (y yamlRule) spec() (rules.Spec, error) {
	args := y.Args
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return rules.Spec{}, err
	}
	s := rules.Spec{Name: y.Name, Kwargs: encoded}
	if _, err := rules.Decode(s); err != nil {
		return rules.Spec{}, err
	}
	return s, nil
}

func addFromFile(ctx context.Context, app *App, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var bulk bulkFile
	if err := yaml.Unmarshal(data, &bulk); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for i, entry := range bulk.Markets {
		mkt, err := fetchMarket(ctx, app.Client, entry.URL, entry.Slug, entry.ID)
		if err != nil {
			return fmt.Errorf("market %d: %w", i, err)
		}
		rec := &store.Record{
			MarketID:    mkt.ID,
			Question:    mkt.Question,
			OutcomeType: string(mkt.OutcomeType),
			URL:         mkt.URL,
			Notes:       entry.Notes,
			CheckRate:   app.Cfg.Schedule.DefaultCheckRate.Duration,
		}
		if entry.CheckRate != "" {
			rate, err := time.ParseDuration(entry.CheckRate)
			if err != nil {
				return fmt.Errorf("market %d: check_rate: %w", i, err)
			}
			rec.CheckRate = rate
		}
		for _, rule := range entry.ResolveWhen {
			s, err := rule.spec()
			if err != nil {
				return fmt.Errorf("market %d: resolve_when: %w", i, err)
			}
			rec.DoResolve = append(rec.DoResolve, s)
		}
		for _, rule := range entry.ResolveTo {
			s, err := rule.spec()
			if err != nil {
				return fmt.Errorf("market %d: resolve_to: %w", i, err)
			}
			rec.ResolveTo = append(rec.ResolveTo, s)
		}
		if len(rec.DoResolve) == 0 {
			rec.DoResolve = append(rec.DoResolve, mustSpec("manifold.this.ThisMarketClosed", nil))
		}
		if len(rec.ResolveTo) == 0 {
			rec.ResolveTo = append(rec.ResolveTo, mustSpec("manifold.this.CurrentValueRule", nil))
		}

		rowID, err := app.Store.Add(rec)
		if err != nil {
			return fmt.Errorf("market %d: %w", i, err)
		}
		fmt.Printf("Successfully added %s as ID %d!\n", mkt.Question, rowID)
	}
	return nil
}
