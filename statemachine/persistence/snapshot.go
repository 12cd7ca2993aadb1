package persistence

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/zeebo/xxh3"
)

// Snapshot is the persisted form of a machine: its current state and,
// optionally, its transition log.
type Snapshot struct {
	Machine     string    `json:"machine"           yaml:"machine"`
	Fingerprint string    `json:"fingerprint"       yaml:"fingerprint"`
	State       string    `json:"state"             yaml:"state"`
	SavedAt     time.Time `json:"savedAt"           yaml:"savedAt"`
	History     []Record  `json:"history,omitempty" yaml:"history,omitempty"`
}

// Record is one persisted history item. A nil Reason marks a forced override.
type Record struct {
	From   string    `json:"from"             yaml:"from"`
	To     string    `json:"to"               yaml:"to"`
	Reason *string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	When   time.Time `json:"when"             yaml:"when"`
}

// Forced reports whether the record came from a state override.
func (r Record) Forced() bool {
	return r.Reason == nil
}

// Fingerprint identifies the shape of a transition table. Snapshots carry
// it so they are not restored into a machine with a different table.
func Fingerprint[S, E comparable](table statemachine.TableView[S, E], conv Converter[S, E]) string {
	hasher := xxh3.New()

	for _, t := range table.Transitions() {
		_, _ = hasher.WriteString(conv.FormatState(t.From))
		_, _ = hasher.WriteString("\x00")
		_, _ = hasher.WriteString(conv.FormatStimulus(t.Reason))
		_, _ = hasher.WriteString("\x00")
		_, _ = hasher.WriteString(conv.FormatState(t.To))
		_, _ = hasher.WriteString("\n")
	}

	return fmt.Sprintf("%016x", hasher.Sum64())
}

// Capture builds a snapshot of m.
func Capture[S, E comparable](m Machine[S, E], conv Converter[S, E], opts Options) Snapshot {
	snapshot := Snapshot{
		Machine:     m.Name(),
		Fingerprint: Fingerprint(m.Table(), conv),
		State:       conv.FormatState(m.CurrentState()),
		SavedAt:     opts.now(),
	}

	if opts.SkipHistory {
		return snapshot
	}

	for item := range m.History().All() {
		record := Record{
			From: conv.FormatState(item.From),
			To:   conv.FormatState(item.To),
			When: item.When,
		}

		if item.Reason != nil {
			reason := conv.FormatStimulus(*item.Reason)
			record.Reason = &reason
		}

		snapshot.History = append(snapshot.History, record)
	}

	return snapshot
}

func parseRecords[S, E comparable](records []Record, conv Converter[S, E]) ([]statemachine.HistoryItem[S, E], error) {
	items := make([]statemachine.HistoryItem[S, E], 0, len(records))

	for i, record := range records {
		from, err := conv.ParseState(record.From)
		if err != nil {
			return nil, fmt.Errorf("history record %d: %w", i, err)
		}

		to, err := conv.ParseState(record.To)
		if err != nil {
			return nil, fmt.Errorf("history record %d: %w", i, err)
		}

		item := statemachine.HistoryItem[S, E]{From: from, To: to, When: record.When}

		if record.Reason != nil {
			reason, err := conv.ParseStimulus(*record.Reason)
			if err != nil {
				return nil, fmt.Errorf("history record %d: %w", i, err)
			}

			item.Reason = &reason
		}

		items = append(items, item)
	}

	return items, nil
}
