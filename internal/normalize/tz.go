package normalize

import "time"

// OffsetResolver resolves the UTC offset in effect for a naive local wall
// time. Abstracted so the fixed rule below can later be swapped for a real
// time-zone database lookup without touching the normalizer.
type OffsetResolver interface {
	Offset(naiveLocal time.Time) time.Duration
}

// RegionRule approximates a single civil time zone with a fixed DST rule:
// the summer offset applies from 01:00 UTC on the last Sunday of March
// through 01:00 UTC on the last Sunday of October of the same year, the
// base offset otherwise. Defaults (+1/+2) match Central European time.
type RegionRule struct {
	Base   time.Duration
	Summer time.Duration
}

// NewRegionRule builds a RegionRule from whole-hour offsets.
func NewRegionRule(baseHours, summerHours int) RegionRule {
	return RegionRule{
		Base:   time.Duration(baseHours) * time.Hour,
		Summer: time.Duration(summerHours) * time.Hour,
	}
}

// Offset implements OffsetResolver. The naive wall time is converted to a
// tentative instant using the summer offset and compared against the two
// cutover instants; this keeps the rule instant-based and total even inside
// the spring-forward gap.
func (r RegionRule) Offset(naiveLocal time.Time) time.Duration {
	instant := naiveLocal.Add(-r.Summer)
	year := naiveLocal.Year()

	start := cutoverInstant(year, time.March)
	end := cutoverInstant(year, time.October)

	if !instant.Before(start) && instant.Before(end) {
		return r.Summer
	}
	return r.Base
}

// cutoverInstant returns 01:00 UTC on the last Sunday of the given month:
// the date in [25, 31] whose weekday is Sunday.
func cutoverInstant(year int, month time.Month) time.Time {
	for day := 31; day >= 25; day-- {
		d := time.Date(year, month, day, 1, 0, 0, 0, time.UTC)
		if d.Day() == day && d.Weekday() == time.Sunday {
			return d
		}
	}
	// Unreachable: every month has a Sunday in [25, 31] when it has 31 days,
	// and March/October always do.
	return time.Date(year, month, 25, 1, 0, 0, 0, time.UTC)
}
