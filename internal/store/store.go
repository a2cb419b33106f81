package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/MichalProuza/home-dashboard/internal/model"
	"github.com/MichalProuza/home-dashboard/internal/normalize"
)

// TimeLayout is the export format for all timestamps: extended ISO-8601
// with an explicit +00:00 offset. Downstream consumers of the JSON file
// expect this exact shape, not the RFC3339 "Z" suffix.
const TimeLayout = "2006-01-02T15:04:05+00:00"

// Event is the exported form of one normalized event.
type Event struct {
	Summary  string `json:"summary"`
	Date     string `json:"date"`
	AllDay   bool   `json:"all_day"`
	Location string `json:"location"`
}

// Envelope is the top-level result document. Error is mutually exclusive
// with a successful event list; an error envelope still carries the empty
// lists of the active mode so consumers can distinguish "no events" from
// "feed unreadable".
type Envelope struct {
	Updated string  `json:"updated"`
	Error   *string `json:"error"`

	// Split mode.
	Recurring *[]Event `json:"recurring,omitempty"`
	Single    *[]Event `json:"single,omitempty"`

	// Merged mode.
	Events *[]Event `json:"events,omitempty"`
}

// FormatTime renders a timestamp in the export layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NewEnvelope builds a success envelope from a normalizer result.
func NewEnvelope(res normalize.Result, generatedAt time.Time) Envelope {
	env := Envelope{Updated: FormatTime(generatedAt)}
	if res.Mode == normalize.ModeMerged {
		env.Events = exportEvents(res.Events)
		return env
	}
	env.Recurring = exportEvents(res.Recurring)
	env.Single = exportEvents(res.Single)
	return env
}

// NewErrorEnvelope builds the failure envelope for the given shaping mode.
func NewErrorEnvelope(mode normalize.Mode, generatedAt time.Time, msg string) Envelope {
	env := Envelope{Updated: FormatTime(generatedAt), Error: &msg}
	empty := []Event{}
	if mode == normalize.ModeMerged {
		env.Events = &empty
		return env
	}
	emptySingle := []Event{}
	env.Recurring = &empty
	env.Single = &emptySingle
	return env
}

func exportEvents(events []model.NormalizedEvent) *[]Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, Event{
			Summary:  ev.Summary,
			Date:     FormatTime(ev.StartUTC),
			AllDay:   ev.AllDay,
			Location: ev.Location,
		})
	}
	return &out
}

// Write persists the envelope as indented JSON, atomically via a temp file
// in the target directory plus rename.
func Write(path string, env Envelope) error {
	if path == "" {
		return errors.New("store: output path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".calendar-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
