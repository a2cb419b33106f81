package ics

import (
	"errors"
	"strings"

	"github.com/MichalProuza/home-dashboard/internal/model"
)

// ErrNotCalendar reports a payload without the top-level calendar marker.
// Callers must treat this as "feed unreadable", not as an empty feed.
var ErrNotCalendar = errors.New("ics: payload is not a calendar document")

const (
	calendarMarker = "BEGIN:VCALENDAR"
	eventMarker    = "BEGIN:VEVENT"
)

// IsCalendar reports whether the payload carries the calendar marker. The
// fetch collaborator uses this to reject HTML error pages and login
// redirects before the reader runs.
func IsCalendar(body []byte) bool {
	return strings.Contains(string(body), calendarMarker)
}

// Read turns a raw ICS document into a flat list of CandidateEvent, one per
// well-formed VEVENT block. Blocks missing SUMMARY or DTSTART are dropped
// silently; a document without BEGIN:VCALENDAR fails with ErrNotCalendar.
func Read(body []byte) ([]model.CandidateEvent, error) {
	text := string(body)
	if !strings.Contains(text, calendarMarker) {
		return nil, ErrNotCalendar
	}

	text = Unfold(text)

	candidates := make([]model.CandidateEvent, 0)
	for _, block := range splitEventBlocks(text) {
		cand, ok := parseBlock(block)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// Unfold removes folded-line continuations: a line break immediately
// followed by a single space or tab joins the line with its continuation.
// The break and the marker character are removed, not replaced by a space.
// Both CRLF and bare-LF documents are handled.
func Unfold(text string) string {
	replacer := strings.NewReplacer(
		"\r\n ", "",
		"\r\n\t", "",
		"\n ", "",
		"\n\t", "",
	)
	return replacer.Replace(text)
}

// splitEventBlocks returns one segment per VEVENT, each running from its
// BEGIN:VEVENT line to the next BEGIN:VEVENT or the end of the document.
// The preamble before the first VEVENT is discarded.
func splitEventBlocks(text string) []string {
	parts := strings.Split(text, eventMarker)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

// parseBlock extracts the candidate essentials from one VEVENT segment.
// ok is false when the block fails the required-field filter.
func parseBlock(block string) (model.CandidateEvent, bool) {
	lines := strings.Split(block, "\n")

	summary, ok := lookupField(lines, "SUMMARY")
	if !ok || summary == "" {
		return model.CandidateEvent{}, false
	}
	start, ok := lookupField(lines, "DTSTART")
	if !ok || start == "" {
		return model.CandidateEvent{}, false
	}

	location, _ := lookupField(lines, "LOCATION")
	uid, _ := lookupField(lines, "UID")
	rrule, rruleOK := lookupField(lines, "RRULE")

	return model.CandidateEvent{
		Summary:  summary,
		StartRaw: start,
		Location: location,
		UID:      uid,
		HasRRule: rruleOK && rrule != "",
	}, true
}

// lookupField finds the first line whose key portion (everything before the
// first ':' or ';') equals key exactly, and returns the substring after the
// first ':' on that line, trimmed. Parameter suffixes such as
// "DTSTART;TZID=..." belong to the same field and are stripped. The second
// return value distinguishes an absent field from an empty one.
func lookupField(lines []string, key string) (string, bool) {
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		keyPart := line[:colon]
		if semi := strings.Index(line, ";"); semi >= 0 && semi < colon {
			keyPart = line[:semi]
		}
		if keyPart != key {
			continue
		}
		return strings.TrimSpace(line[colon+1:]), true
	}
	return "", false
}
