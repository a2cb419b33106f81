package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichalProuza/home-dashboard/internal/model"
)

func testOptions(now time.Time) Options {
	return Options{
		Now:       now,
		DaysAhead: 30,
		Mode:      ModeSplit,
		MaxEach:   3,
		MaxTotal:  10,
		Resolver:  NewRegionRule(1, 2),
	}
}

func TestResolveStart(t *testing.T) {
	resolver := NewRegionRule(1, 2)

	t.Run("date-only is all-day at midnight UTC", func(t *testing.T) {
		got, allDay, ok := ResolveStart("20260710", resolver)
		require.True(t, ok)
		assert.True(t, allDay)
		assert.Equal(t, time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("Z form is the literal UTC instant", func(t *testing.T) {
		got, allDay, ok := ResolveStart("20260710T120000Z", resolver)
		require.True(t, ok)
		assert.False(t, allDay)
		assert.Equal(t, time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC), got)
	})

	t.Run("short Z form defaults seconds to zero", func(t *testing.T) {
		got, _, ok := ResolveStart("20260710T1230Z", resolver)
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 7, 10, 12, 30, 0, 0, time.UTC), got)
	})

	t.Run("floating local resolves through the region rule", func(t *testing.T) {
		// Summer: +2 applies.
		got, allDay, ok := ResolveStart("20260615T090000", resolver)
		require.True(t, ok)
		assert.False(t, allDay)
		assert.Equal(t, time.Date(2026, 6, 15, 7, 0, 0, 0, time.UTC), got)

		// Winter: +1 applies.
		got, _, ok = ResolveStart("20260115T090000", resolver)
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC), got)
	})

	t.Run("malformed values are rejected", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"2026071",          // wrong length
			"2026071X",         // non-numeric
			"20260710T09",      // too short for floating
			"20260710T09000Z",  // wrong Z body length
			"20260710T09000x5", // non-numeric floating
		} {
			_, _, ok := ResolveStart(raw, resolver)
			assert.False(t, ok, "expected %q to be rejected", raw)
		}
	})
}

func TestNormalizeRecurringScenario(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Standup", StartRaw: "20260615T090000", UID: "s1", HasRRule: true},
	}

	res := Normalize(candidates, nil, testOptions(now))

	require.Len(t, res.Recurring, 1)
	assert.Empty(t, res.Single)

	ev := res.Recurring[0]
	assert.Equal(t, "Standup", ev.Summary)
	assert.Equal(t, time.Date(2026, 6, 15, 7, 0, 0, 0, time.UTC), ev.StartUTC)
	assert.False(t, ev.AllDay)
	assert.True(t, ev.Recurring)
}

func TestNormalizeClassifiesByRecurringUIDSet(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		// A pre-expanded occurrence does not carry the RRULE flag itself.
		{Summary: "Standup", StartRaw: "20260615T090000Z", UID: "s1", IsExpandedOccurrence: true},
		{Summary: "Concert", StartRaw: "20260620T190000Z", UID: "c1"},
	}
	recurringUIDs := map[string]struct{}{"s1": {}}

	res := Normalize(candidates, recurringUIDs, testOptions(now))

	require.Len(t, res.Recurring, 1)
	require.Len(t, res.Single, 1)
	assert.Equal(t, "Standup", res.Recurring[0].Summary)
	assert.Equal(t, "Concert", res.Single[0].Summary)
	assert.False(t, res.Single[0].Recurring)
}

func TestNormalizeDeduplicatesByUID(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	// Raw series definition and one expanded instance, both visible: only
	// the earliest-starting one survives.
	candidates := []model.CandidateEvent{
		{Summary: "Standup", StartRaw: "20260622T090000Z", UID: "s1", HasRRule: true},
		{Summary: "Standup", StartRaw: "20260615T090000Z", UID: "s1", IsExpandedOccurrence: true},
	}
	recurringUIDs := map[string]struct{}{"s1": {}}

	res := Normalize(candidates, recurringUIDs, testOptions(now))

	require.Len(t, res.Recurring, 1)
	assert.Equal(t, time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC), res.Recurring[0].StartUTC)
}

func TestNormalizeNoDedupForEmptyUID(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "A", StartRaw: "20260610T090000Z"},
		{Summary: "B", StartRaw: "20260611T090000Z"},
	}

	res := Normalize(candidates, nil, testOptions(now))
	assert.Len(t, res.Single, 2)
}

func TestNormalizeWindowIsInclusive(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "At now", StartRaw: "20260601T000000Z", UID: "a"},
		{Summary: "At cutoff", StartRaw: "20260701T000000Z", UID: "b"},
		{Summary: "Before", StartRaw: "20260531T235959Z", UID: "c"},
		{Summary: "After", StartRaw: "20260701T000001Z", UID: "d"},
	}

	res := Normalize(candidates, nil, testOptions(now))

	require.Len(t, res.Single, 2)
	assert.Equal(t, "At now", res.Single[0].Summary)
	assert.Equal(t, "At cutoff", res.Single[1].Summary)
}

func TestNormalizeSortsAndTruncates(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Third", StartRaw: "20260620T090000Z", UID: "3"},
		{Summary: "First", StartRaw: "20260605T090000Z", UID: "1"},
		{Summary: "Fourth", StartRaw: "20260625T090000Z", UID: "4"},
		{Summary: "Second", StartRaw: "20260610T090000Z", UID: "2"},
	}

	opts := testOptions(now)
	opts.MaxEach = 3
	res := Normalize(candidates, nil, opts)

	require.Len(t, res.Single, 3)
	assert.Equal(t, "First", res.Single[0].Summary)
	assert.Equal(t, "Second", res.Single[1].Summary)
	assert.Equal(t, "Third", res.Single[2].Summary)
	for i := 1; i < len(res.Single); i++ {
		assert.False(t, res.Single[i].StartUTC.Before(res.Single[i-1].StartUTC))
	}
}

func TestNormalizeStableOrderOnEqualStarts(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Alpha", StartRaw: "20260610T090000Z"},
		{Summary: "Beta", StartRaw: "20260610T090000Z"},
	}

	res := Normalize(candidates, nil, testOptions(now))

	require.Len(t, res.Single, 2)
	assert.Equal(t, "Alpha", res.Single[0].Summary)
	assert.Equal(t, "Beta", res.Single[1].Summary)
}

func TestNormalizeMergedMode(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Single late", StartRaw: "20260620T090000Z", UID: "a"},
		{Summary: "Recurring early", StartRaw: "20260605T090000Z", UID: "b", HasRRule: true},
		{Summary: "Single early", StartRaw: "20260603T090000Z", UID: "c"},
	}

	opts := testOptions(now)
	opts.Mode = ModeMerged
	opts.MaxTotal = 2
	res := Normalize(candidates, nil, opts)

	assert.Empty(t, res.Recurring)
	assert.Empty(t, res.Single)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Single early", res.Events[0].Summary)
	assert.Equal(t, "Recurring early", res.Events[1].Summary)
	assert.True(t, res.Events[1].Recurring)
}

func TestNormalizeDropsMalformedCandidatesSilently(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Bad", StartRaw: "not-a-date"},
		{Summary: "", StartRaw: "20260610T090000Z"},
		{Summary: "Good", StartRaw: "20260610T090000Z"},
	}

	res := Normalize(candidates, nil, testOptions(now))
	require.Len(t, res.Single, 1)
	assert.Equal(t, "Good", res.Single[0].Summary)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Holiday", StartRaw: "20260628", UID: "h1"},
		{Summary: "Standup", StartRaw: "20260615T090000", UID: "s1", HasRRule: true},
		{Summary: "Concert", StartRaw: "20260620T190000Z", UID: "c1"},
	}

	first := Normalize(candidates, nil, testOptions(now))
	second := Normalize(candidates, nil, testOptions(now))
	assert.Equal(t, first, second)
}

func TestNormalizeAllDayEvent(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.CandidateEvent{
		{Summary: "Holiday", StartRaw: "20260628", UID: "h1"},
	}

	res := Normalize(candidates, nil, testOptions(now))

	require.Len(t, res.Single, 1)
	assert.True(t, res.Single[0].AllDay)
	assert.Equal(t, time.Date(2026, 6, 28, 0, 0, 0, 0, time.UTC), res.Single[0].StartUTC)
}
