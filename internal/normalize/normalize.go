package normalize

import (
	"sort"
	"strings"
	"time"

	"github.com/MichalProuza/home-dashboard/internal/model"
)

// Mode selects the final shaping of the normalized lists. Both modes share
// the same per-event computation; only the truncation step differs.
type Mode int

const (
	// ModeSplit keeps recurring and single events in separate lists, each
	// capped at MaxEach.
	ModeSplit Mode = iota
	// ModeMerged merges both classes, re-sorts and caps at MaxTotal.
	ModeMerged
)

// Options carries the caller-supplied inputs that make a run deterministic:
// the reference time, the window length and the shaping limits. A nil
// Resolver is replaced by the default +1/+2 region rule.
type Options struct {
	Now       time.Time
	DaysAhead int
	Mode      Mode
	MaxEach   int
	MaxTotal  int
	Resolver  OffsetResolver
}

// Result is the normalizer output. In ModeSplit, Recurring and Single are
// populated; in ModeMerged, Events holds the combined list.
type Result struct {
	Mode      Mode
	Recurring []model.NormalizedEvent
	Single    []model.NormalizedEvent
	Events    []model.NormalizedEvent
}

// classified pairs a normalized event with its source UID for dedup.
type classified struct {
	ev  model.NormalizedEvent
	uid string
}

// Normalize converts candidates into UTC-normalized events: it resolves each
// start time, filters to [Now, Now+DaysAhead] inclusive, classifies
// recurring vs singular, deduplicates by UID within each class, sorts each
// class ascending by start (stable) and truncates per the active mode.
//
// recurringUIDs is the set of UIDs whose raw series definition carried
// RRULE; it classifies pre-expanded occurrences whose own RRULE flag is
// unset. It may be nil.
//
// Normalize never fails: structurally invalid candidates are dropped.
func Normalize(candidates []model.CandidateEvent, recurringUIDs map[string]struct{}, opts Options) Result {
	if opts.Resolver == nil {
		opts.Resolver = NewRegionRule(1, 2)
	}

	windowStart := opts.Now
	windowEnd := opts.Now.Add(time.Duration(opts.DaysAhead) * 24 * time.Hour)

	var recurring, single []classified

	for _, cand := range candidates {
		if cand.Summary == "" || cand.StartRaw == "" {
			continue
		}

		startUTC, allDay, ok := ResolveStart(cand.StartRaw, opts.Resolver)
		if !ok {
			continue
		}
		// The window applies to everything, including occurrences that
		// arrived pre-filtered from the expander.
		if startUTC.Before(windowStart) || startUTC.After(windowEnd) {
			continue
		}

		isRecurring := cand.HasRRule
		if !isRecurring && cand.UID != "" {
			_, isRecurring = recurringUIDs[cand.UID]
		}

		entry := classified{
			ev: model.NormalizedEvent{
				Summary:   cand.Summary,
				StartUTC:  startUTC,
				AllDay:    allDay,
				Location:  cand.Location,
				Recurring: isRecurring,
			},
			uid: cand.UID,
		}
		if isRecurring {
			recurring = dedupAppend(recurring, entry)
		} else {
			single = dedupAppend(single, entry)
		}
	}

	res := Result{Mode: opts.Mode}
	switch opts.Mode {
	case ModeMerged:
		merged := append(project(recurring), project(single)...)
		sortByStart(merged)
		res.Events = truncate(merged, opts.MaxTotal)
	default:
		res.Recurring = truncate(sorted(recurring), opts.MaxEach)
		res.Single = truncate(sorted(single), opts.MaxEach)
	}
	return res
}

// ResolveStart decodes one DTSTART lexical form into a UTC instant.
//
//	YYYYMMDD          all-day; midnight UTC on that date (deliberately not
//	                  the local midnight, preserved for compatibility)
//	...Z              literal UTC; seconds default to 0 in the 13-char form
//	YYYYMMDDTHHMMSS   floating local; offset from the resolver
//
// ok is false for any other form, wrong lengths or non-numeric values.
func ResolveStart(raw string, resolver OffsetResolver) (t time.Time, allDay bool, ok bool) {
	raw = strings.TrimSpace(raw)

	switch {
	case len(raw) == 8:
		t, err := time.Parse("20060102", raw)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true

	case strings.HasSuffix(raw, "Z"):
		body := raw[:len(raw)-1]
		layout := "20060102T150405"
		if len(body) == 13 {
			layout = "20060102T1504"
		}
		t, err := time.Parse(layout, body)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, false, true

	case len(raw) >= 15:
		naive, err := time.Parse("20060102T150405", raw[:15])
		if err != nil {
			return time.Time{}, false, false
		}
		return naive.Add(-resolver.Offset(naive)), false, true

	default:
		return time.Time{}, false, false
	}
}

// dedupAppend appends entry unless an event with the same non-empty UID is
// already present in the class, in which case only the earliest-starting
// instance is kept. This prevents double-counting an expanded series against
// its raw definition when both are visible.
func dedupAppend(list []classified, entry classified) []classified {
	if entry.uid == "" {
		return append(list, entry)
	}
	for i := range list {
		if list[i].uid != entry.uid {
			continue
		}
		if entry.ev.StartUTC.Before(list[i].ev.StartUTC) {
			list[i] = entry
		}
		return list
	}
	return append(list, entry)
}

// sorted projects the class to events in stable ascending start order.
func sorted(list []classified) []model.NormalizedEvent {
	events := project(list)
	sortByStart(events)
	return events
}

func project(list []classified) []model.NormalizedEvent {
	events := make([]model.NormalizedEvent, 0, len(list))
	for _, entry := range list {
		events = append(events, entry.ev)
	}
	return events
}

// sortByStart is stable so ties keep their input order.
func sortByStart(events []model.NormalizedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartUTC.Before(events[j].StartUTC)
	})
}

func truncate(events []model.NormalizedEvent, max int) []model.NormalizedEvent {
	if max > 0 && len(events) > max {
		return events[:max]
	}
	return events
}
