// Package persistence saves a state machine's current state and history
// to a snapshot and restores it later. Restoring goes through
// OverrideState, so enter and leave actions observe the change.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
)

var (
	// ErrFingerprintMismatch indicates the snapshot was taken from a machine with a different transition table.
	ErrFingerprintMismatch = errors.New("snapshot fingerprint does not match transition table")
	// ErrUnknownFormat indicates an unsupported serialization format.
	ErrUnknownFormat = errors.New("unknown snapshot format")
	// ErrUnknownCompression indicates an unsupported compression algorithm.
	ErrUnknownCompression = errors.New("unknown snapshot compression")
	// ErrUnknownValue indicates a label that does not map to a known state or stimulus.
	ErrUnknownValue = errors.New("unknown value")
)

// Machine is what persistence needs from an engine. Both
// *statemachine.Engine and *statemachine.Deferred satisfy it.
type Machine[S, E comparable] interface {
	Name() string
	CurrentState() S
	Table() statemachine.TableView[S, E]
	History() *statemachine.History[S, E]
	OverrideState(ctx context.Context, state S) error
}

// Save captures m and writes the snapshot to w.
func Save[S, E comparable](ctx context.Context, w io.Writer, m Machine[S, E], conv Converter[S, E], opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := Capture(m, conv, opts)

	if err := Encode(w, snapshot, opts); err != nil {
		return err
	}

	logger.Get(ctx).DebugContext(ctx, "Saved state machine snapshot",
		"machine", snapshot.Machine,
		"state", snapshot.State,
		"records", len(snapshot.History),
		"format", string(opts.format()),
		"compression", string(opts.compression()),
	)

	return nil
}

// Restore reads a snapshot from r and applies it to m: the state is forced
// with OverrideState, then the history is replaced by the saved records
// with their original timestamps. Nothing is changed if the snapshot cannot
// be parsed or its fingerprint does not match.
func Restore[S, E comparable](
	ctx context.Context, r io.Reader, m Machine[S, E], conv Converter[S, E], opts Options,
) (Snapshot, error) {
	snapshot, err := Decode(r, opts)
	if err != nil {
		return snapshot, err
	}

	return snapshot, Apply(ctx, snapshot, m, conv, opts)
}

// Apply restores an already decoded snapshot into m.
func Apply[S, E comparable](ctx context.Context, snapshot Snapshot, m Machine[S, E], conv Converter[S, E], opts Options) error {
	if !opts.IgnoreFingerprint {
		if expected := Fingerprint(m.Table(), conv); snapshot.Fingerprint != expected {
			return fmt.Errorf("%w: snapshot %s, machine %s", ErrFingerprintMismatch, snapshot.Fingerprint, expected)
		}
	}

	state, err := conv.ParseState(snapshot.State)
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}

	items, err := parseRecords(snapshot.History, conv)
	if err != nil {
		return err
	}

	if err := m.OverrideState(ctx, state); err != nil {
		return fmt.Errorf("restoring state %s: %w", snapshot.State, err)
	}

	history := m.History()
	history.Clear()

	for _, item := range items {
		history.AddItem(item)
	}

	logger.Get(ctx).DebugContext(ctx, "Restored state machine snapshot",
		"machine", m.Name(),
		"state", snapshot.State,
		"records", len(items),
		"saved_at", snapshot.SavedAt,
	)

	return nil
}

// SaveFile writes a snapshot of m to path, replacing any existing file
// only once the new one is fully written.
func SaveFile[S, E comparable](ctx context.Context, path string, m Machine[S, E], conv Converter[S, E], opts Options) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Save(ctx, tmp, m, conv, opts); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot file: %w", err)
	}

	return nil
}

// RestoreFile reads the snapshot at path and applies it to m.
func RestoreFile[S, E comparable](
	ctx context.Context, path string, m Machine[S, E], conv Converter[S, E], opts Options,
) (Snapshot, error) {
	snapshot, err := ReadFile(path, opts)
	if err != nil {
		return snapshot, err
	}

	return snapshot, Apply(ctx, snapshot, m, conv, opts)
}

// ReadFile decodes the snapshot at path without applying it.
func ReadFile(path string, opts Options) (Snapshot, error) {
	file, err := os.Open(path) //nolint:gosec // caller-supplied snapshot path
	if err != nil {
		return Snapshot{}, fmt.Errorf("opening snapshot file: %w", err)
	}

	defer func() { _ = file.Close() }()

	return Decode(file, opts)
}
