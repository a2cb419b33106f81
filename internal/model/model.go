package model

import "time"

// CandidateEvent is one VEVENT block's extracted essentials before time
// resolution. It is produced either by the raw reader (one candidate per
// block) or by the recurrence expander (one candidate per concrete
// occurrence).
type CandidateEvent struct {
	// Summary and StartRaw are required; candidates missing either never
	// leave the reader.
	Summary  string
	StartRaw string // undecoded DTSTART value: YYYYMMDD, YYYYMMDDTHHMMSS or ...Z

	Location string
	UID      string

	// HasRRule is true iff the originating block carried a non-empty RRULE.
	HasRRule bool

	// IsExpandedOccurrence marks a candidate that already represents one
	// concrete occurrence of a recurring series rather than the raw series
	// definition.
	IsExpandedOccurrence bool
}

// NormalizedEvent is the immutable output record. StartUTC is always in UTC
// regardless of how the source feed encoded the start time.
type NormalizedEvent struct {
	Summary   string
	StartUTC  time.Time
	AllDay    bool
	Location  string
	Recurring bool
}
