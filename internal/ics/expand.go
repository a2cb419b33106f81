package ics

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "github.com/MichalProuza/home-dashboard/internal/log"
	"github.com/MichalProuza/home-dashboard/internal/model"
)

const defaultMaxOccurrencesPerEvent = 1000

// expandWindowPad widens the expansion window on both sides. Floating local
// starts are expanded on their naive clock, which trails real UTC by the
// regional offset; the normalizer re-checks the window after resolution.
const expandWindowPad = 24 * time.Hour

// Expander is the recurrence expansion collaborator: it resolves RRULE,
// EXDATE and RECURRENCE-ID overrides into concrete occurrences inside a
// time window. Expansion is delegated to teambition/rrule-go; the calendar
// structure comes from arran4/golang-ical.
type Expander struct {
	// MaxOccurrencesPerEvent caps expansion of a single series. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// Expansion is the collaborator's output. Occurrences carry their start in
// the same lexical form as the series DTSTART, so the normalizer resolves
// floating local times itself.
type Expansion struct {
	Candidates []model.CandidateEvent

	// RecurringUIDs holds the UIDs whose raw definition carried RRULE.
	// The normalizer classifies expanded occurrences with this set.
	RecurringUIDs map[string]struct{}
}

// vevent is the subset of a VEVENT the expander works with.
type vevent struct {
	uid      string
	summary  string
	location string

	startRaw string    // DTSTART lexical value
	start    time.Time // startRaw on its naive clock (UTC internally)
	allDay   bool
	utcForm  bool // startRaw carried the Z suffix

	rawRRule string
	exDates  []time.Time

	recurrenceID *time.Time // set on override instances
}

// Expand parses the calendar and returns concrete occurrences within
// [windowStart, windowEnd]. Individual malformed events are skipped; a
// structurally unparseable calendar is an error.
func (e *Expander) Expand(body []byte, windowStart, windowEnd time.Time) (Expansion, error) {
	out := Expansion{RecurringUIDs: make(map[string]struct{})}

	if windowEnd.Before(windowStart) {
		return out, errors.New("expand: window end is before window start")
	}
	maxOcc := e.MaxOccurrencesPerEvent
	if maxOcc <= 0 {
		maxOcc = defaultMaxOccurrencesPerEvent
	}

	cal, err := ical.ParseCalendar(strings.NewReader(string(body)))
	if err != nil {
		return out, err
	}

	var bases []vevent
	overridesByUID := make(map[string][]vevent)

	for _, comp := range cal.Events() {
		ev, ok := parseVEvent(comp)
		if !ok {
			continue
		}
		if ev.recurrenceID != nil {
			overridesByUID[ev.uid] = append(overridesByUID[ev.uid], ev)
			continue
		}
		if ev.rawRRule != "" && ev.uid != "" {
			out.RecurringUIDs[ev.uid] = struct{}{}
		}
		bases = append(bases, ev)
	}

	lo := windowStart.Add(-expandWindowPad)
	hi := windowEnd.Add(expandWindowPad)

	for _, ev := range bases {
		if ev.rawRRule == "" {
			out.Candidates = append(out.Candidates, occurrenceCandidate(ev, ev.start, false))
			continue
		}

		occTimes, ok := expandSeries(ev, lo, hi, maxOcc)
		if !ok {
			continue
		}
		for _, occStart := range occTimes {
			occ := ev
			if o, found := findOverride(overridesByUID[ev.uid], occStart); found {
				occ = o
				occStart = o.start
			}
			out.Candidates = append(out.Candidates, occurrenceCandidate(occ, occStart, true))
		}
	}

	return out, nil
}

// expandSeries runs the RRULE for one base event on its naive clock.
func expandSeries(ev vevent, lo, hi time.Time, maxOcc int) ([]time.Time, bool) {
	r, err := rrule.StrToRRule(ev.rawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.uid, "rrule", ev.rawRRule)
		return nil, false
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex)
	}

	occTimes := set.Between(lo, hi, true)
	if len(occTimes) > maxOcc {
		appLog.Error("expand: truncated occurrences for UID due to cap",
			errors.New("max occurrences reached"), "uid", ev.uid, "cap", maxOcc)
		occTimes = occTimes[:maxOcc]
	}
	return occTimes, true
}

// occurrenceCandidate re-encodes one occurrence in the lexical form of the
// series DTSTART, so the normalizer applies the same resolution rules to
// expanded and raw candidates alike.
func occurrenceCandidate(ev vevent, start time.Time, expanded bool) model.CandidateEvent {
	var raw string
	switch {
	case ev.allDay:
		raw = start.Format("20060102")
	case ev.utcForm:
		raw = start.Format("20060102T150405") + "Z"
	default:
		raw = start.Format("20060102T150405")
	}

	return model.CandidateEvent{
		Summary:              ev.summary,
		StartRaw:             raw,
		Location:             ev.location,
		UID:                  ev.uid,
		HasRRule:             ev.rawRRule != "",
		IsExpandedOccurrence: expanded,
	}
}

// findOverride locates an override whose RECURRENCE-ID equals the occurrence
// start on the naive clock.
func findOverride(overrides []vevent, occStart time.Time) (vevent, bool) {
	for _, ov := range overrides {
		if ov.recurrenceID != nil && ov.recurrenceID.Equal(occStart) {
			return ov, true
		}
	}
	return vevent{}, false
}

// parseVEvent extracts the expander's view of one VEVENT. ok is false for
// events missing SUMMARY or DTSTART, or with an undecodable DTSTART; those
// are skipped, matching the reader's validation filter.
func parseVEvent(ve *ical.VEvent) (vevent, bool) {
	var ev vevent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.location = strings.TrimSpace(p.Value)
	}
	if ev.summary == "" {
		return ev, false
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return ev, false
	}
	ev.startRaw = strings.TrimSpace(dtStart.Value)

	start, err := parseNaive(ev.startRaw)
	if err != nil {
		appLog.Error("expand: undecodable DTSTART", err, "uid", ev.uid, "value", ev.startRaw)
		return ev, false
	}
	ev.start = start
	ev.allDay = !strings.Contains(ev.startRaw, "T")
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			ev.allDay = true
		}
	}
	ev.utcForm = strings.HasSuffix(ev.startRaw, "Z")

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rawRRule = p.Value
	}

	// EXDATE may appear multiple times, each with a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseNaive(part); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseNaive(p.Value); err == nil {
			ev.recurrenceID = &t
		}
	}

	return ev, true
}

// parseNaive decodes the three ICS start forms onto a naive clock (stored as
// UTC so rrule arithmetic has a single location). Offset resolution for
// floating values happens later, in the normalizer.
func parseNaive(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasSuffix(v, "Z"):
		if len(v) == len("20060102T1504Z") {
			return time.Parse("20060102T1504Z", v)
		}
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	default:
		return time.ParseInLocation("20060102", v, time.UTC)
	}
}
