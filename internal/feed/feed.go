package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MichalProuza/home-dashboard/internal/config"
	"github.com/MichalProuza/home-dashboard/internal/ics"
	appLog "github.com/MichalProuza/home-dashboard/internal/log"
	"github.com/MichalProuza/home-dashboard/internal/normalize"
	"github.com/MichalProuza/home-dashboard/internal/store"
)

// ErrNoFeedURL reports a run without a configured feed endpoint.
var ErrNoFeedURL = errors.New("feed: no feed URL configured (set CALENDAR_ICS_URL or feed_url)")

// Processor composes the fetch, read, expand and normalize stages. It holds
// only collaborators and configuration; normalization itself is a pure
// function of (document, now, window, limits).
type Processor struct {
	cfg      *config.Config
	fetcher  *ics.Fetcher
	expander *ics.Expander
}

func NewProcessor(cfg *config.Config) *Processor {
	return &Processor{
		cfg:      cfg,
		fetcher:  ics.NewFetcher(cfg.CacheDir),
		expander: &ics.Expander{},
	}
}

// Run executes one fetch → normalize → persist cycle at the given reference
// time. Any failure is recorded as an explicit error envelope at the output
// path, so downstream consumers never mistake a broken feed for an empty one.
func (p *Processor) Run(ctx context.Context, now time.Time) error {
	if p.cfg.FeedURL == "" {
		return p.fail(now, ErrNoFeedURL)
	}

	fetched, err := p.fetcher.Fetch(ctx, p.cfg.FeedURL)
	if err != nil {
		return p.fail(now, fmt.Errorf("fetching feed: %w", err))
	}

	result, err := p.Process(fetched.Body, now)
	if err != nil {
		return p.fail(now, err)
	}

	if err := store.Write(p.cfg.OutputPath, store.NewEnvelope(result, now)); err != nil {
		return err
	}

	appLog.Info("feed run completed",
		"recurring", len(result.Recurring),
		"single", len(result.Single),
		"merged", len(result.Events),
		"output", p.cfg.OutputPath,
	)
	return nil
}

// Process normalizes one raw document against the configured window and
// limits. It is deterministic: the same document and now yield identical
// results.
func (p *Processor) Process(body []byte, now time.Time) (normalize.Result, error) {
	candidates, err := ics.Read(body)
	if err != nil {
		return normalize.Result{}, err
	}

	// UIDs whose raw definition carries RRULE classify expanded occurrences.
	recurringUIDs := make(map[string]struct{})
	for _, cand := range candidates {
		if cand.HasRRule && cand.UID != "" {
			recurringUIDs[cand.UID] = struct{}{}
		}
	}

	if p.cfg.ExpandRecurring {
		cutoff := now.Add(time.Duration(p.cfg.DaysAhead) * 24 * time.Hour)
		exp, err := p.expander.Expand(body, now, cutoff)
		if err != nil {
			return normalize.Result{}, fmt.Errorf("expanding recurring events: %w", err)
		}
		candidates = exp.Candidates
		for uid := range exp.RecurringUIDs {
			recurringUIDs[uid] = struct{}{}
		}
	}

	return normalize.Normalize(candidates, recurringUIDs, normalize.Options{
		Now:       now,
		DaysAhead: p.cfg.DaysAhead,
		Mode:      p.mode(),
		MaxEach:   p.cfg.MaxEach,
		MaxTotal:  p.cfg.MaxTotal,
		Resolver:  normalize.NewRegionRule(p.cfg.BaseOffsetHours, p.cfg.SummerOffsetHours),
	}), nil
}

// fail writes the error envelope and passes the cause through.
func (p *Processor) fail(now time.Time, cause error) error {
	appLog.Error("feed run failed", cause, "output", p.cfg.OutputPath)
	env := store.NewErrorEnvelope(p.mode(), now, cause.Error())
	if werr := store.Write(p.cfg.OutputPath, env); werr != nil {
		appLog.Error("writing error envelope failed", werr, "output", p.cfg.OutputPath)
	}
	return cause
}

func (p *Processor) mode() normalize.Mode {
	if p.cfg.Mode == config.ModeMerged {
		return normalize.ModeMerged
	}
	return normalize.ModeSplit
}
