package persistence

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string

type stimulus string

const (
	idle    state = "idle"
	walking state = "walking"
	stopped state = "stopped"

	walk stimulus = "walk"
	stop stimulus = "stop"
	rest stimulus = "rest"
)

var conv = StringConverter[state, stimulus]()

func newWalker(t *testing.T, entered *[]state) *statemachine.Engine[state, stimulus] {
	t.Helper()

	builder := statemachine.NewBuilder[state, stimulus]("walker", idle).
		In(idle).On(walk).GoTo(walking).
		In(walking).On(stop).GoTo(stopped).
		In(stopped).On(rest).GoTo(idle).
		Done().
		WithHistory(0).
		WithOptions(statemachine.WithMetrics(false), statemachine.WithTracing(false))

	if entered != nil {
		builder.OnEnterAny("record", func(_ context.Context, tr statemachine.Transition[state, stimulus]) error {
			*entered = append(*entered, tr.To)

			return nil
		})
	}

	engine, err := builder.Build()
	require.NoError(t, err)

	return engine
}

func walkAndStop(t *testing.T, engine *statemachine.Engine[state, stimulus]) {
	t.Helper()

	for _, s := range []stimulus{walk, stop} {
		ok, err := engine.Post(context.Background(), s)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, engine.OverrideState(context.Background(), walking))
}

func TestSaveRestore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"json", Options{}},
		{"yaml zstd", Options{Format: FormatYAML, Compression: CompressionZstd}},
		{"json lz4", Options{Format: FormatJSON, Compression: CompressionLZ4}},
		{"yaml brotli", Options{Format: FormatYAML, Compression: CompressionBrotli}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			source := newWalker(t, nil)
			walkAndStop(t, source)

			var buf bytes.Buffer
			require.NoError(t, Save(ctx, &buf, source, conv, tt.opts))

			var entered []state

			target := newWalker(t, &entered)

			snapshot, err := Restore(ctx, &buf, target, conv, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, "walker", snapshot.Machine)
			assert.Equal(t, "walking", snapshot.State)
			assert.Equal(t, walking, target.CurrentState())
			assert.Equal(t, []state{walking}, entered, "restore notifies enter actions")

			want := source.History().Items()
			got := target.History().Items()
			require.Len(t, got, len(want))

			for i := range want {
				assert.Equal(t, want[i].From, got[i].From)
				assert.Equal(t, want[i].To, got[i].To)
				assert.Equal(t, want[i].Reason, got[i].Reason)
				assert.True(t, want[i].When.Equal(got[i].When), "timestamps survive the round trip")
			}

			assert.True(t, got[2].Forced())
		})
	}
}

func TestSaveSkipHistory(t *testing.T) {
	t.Parallel()

	source := newWalker(t, nil)
	walkAndStop(t, source)

	savedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	snapshot := Capture[state, stimulus](source, conv, Options{
		SkipHistory: true,
		Now:         func() time.Time { return savedAt },
	})

	assert.Empty(t, snapshot.History)
	assert.Equal(t, savedAt, snapshot.SavedAt)
	assert.Equal(t, Fingerprint(source.Table(), conv), snapshot.Fingerprint)
}

func TestRestoreFingerprintMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf, newWalker(t, nil), conv, Options{}))

	other, err := statemachine.NewBuilder[state, stimulus]("walker", idle).
		In(idle).On(walk).GoTo(stopped).Done().
		WithOptions(statemachine.WithMetrics(false), statemachine.WithTracing(false)).
		Build()
	require.NoError(t, err)

	require.NoError(t, other.OverrideState(ctx, stopped))

	data := buf.Bytes()

	_, err = Restore(ctx, bytes.NewReader(data), other, conv, Options{})
	require.ErrorIs(t, err, ErrFingerprintMismatch)
	assert.Equal(t, stopped, other.CurrentState(), "nothing changes on mismatch")

	_, err = Restore(ctx, bytes.NewReader(data), other, conv, Options{IgnoreFingerprint: true})
	require.NoError(t, err)
	assert.Equal(t, idle, other.CurrentState())
}

func TestRestoreUnknownLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lookup := LookupConverter([]state{idle, walking, stopped}, []stimulus{walk, stop, rest})
	target := newWalker(t, nil)

	snapshot := Snapshot{
		Fingerprint: Fingerprint(target.Table(), lookup),
		State:       "flying",
	}

	err := Apply(ctx, snapshot, target, lookup, Options{})
	require.ErrorIs(t, err, ErrUnknownValue)

	bogus := "jump"
	snapshot.State = "walking"
	snapshot.History = []Record{{From: "idle", To: "walking", Reason: &bogus}}

	err = Apply(ctx, snapshot, target, lookup, Options{})
	require.ErrorIs(t, err, ErrUnknownValue)
	assert.Equal(t, idle, target.CurrentState(), "records are parsed before anything is applied")
}

func TestSaveFileRestoreFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "walker.yaml.zst")
	opts := OptionsForPath(path)

	source := newWalker(t, nil)
	walkAndStop(t, source)

	require.NoError(t, SaveFile(ctx, path, source, conv, opts))

	snapshot, err := ReadFile(path, opts)
	require.NoError(t, err)
	assert.Len(t, snapshot.History, 3)

	target := newWalker(t, nil)
	_, err = RestoreFile(ctx, path, target, conv, opts)
	require.NoError(t, err)
	assert.Equal(t, walking, target.CurrentState())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files are cleaned up")

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	require.Error(t, err)
}

func TestRestoreIntoDeferred(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := newWalker(t, nil)
	walkAndStop(t, source)

	var buf bytes.Buffer
	require.NoError(t, Save(ctx, &buf, source, conv, Options{Compression: CompressionLZ4}))

	deferred := statemachine.NewDeferred(ctx, newWalker(t, nil))
	t.Cleanup(func() { _ = deferred.Close() })

	_, err := Restore[state, stimulus](ctx, &buf, deferred, conv, Options{Compression: CompressionLZ4})
	require.NoError(t, err)

	assert.Equal(t, walking, deferred.CurrentState())
	assert.Equal(t, 3, deferred.History().Len())

	require.NoError(t, deferred.PostAndWait(ctx, stop))
	assert.Equal(t, stopped, deferred.CurrentState())
}

func TestOptionsForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Options
	}{
		{"m.json", Options{Format: FormatJSON}},
		{"m.yaml", Options{Format: FormatYAML}},
		{"dir/m.YML", Options{Format: FormatYAML}},
		{"m.json.zst", Options{Format: FormatJSON, Compression: CompressionZstd}},
		{"m.yaml.lz4", Options{Format: FormatYAML, Compression: CompressionLZ4}},
		{"m.yml.br", Options{Format: FormatYAML, Compression: CompressionBrotli}},
		{"snapshot", Options{Format: FormatJSON}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, OptionsForPath(tt.path))
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := newWalker(t, nil)
	b := newWalker(t, nil)

	assert.Equal(t, Fingerprint(a.Table(), conv), Fingerprint(b.Table(), conv))
	assert.Len(t, Fingerprint(a.Table(), conv), 16)

	table := statemachine.NewTable[state, stimulus]()
	table.Register(statemachine.NewTransition(idle, walk, walking))

	assert.NotEqual(t, Fingerprint(a.Table(), conv), Fingerprint[state, stimulus](table, conv))
}

func TestUnknownFormatAndCompression(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.ErrorIs(t, Encode(&buf, Snapshot{}, Options{Format: "toml"}), ErrUnknownFormat)
	require.ErrorIs(t, Encode(&buf, Snapshot{}, Options{Compression: "gzip"}), ErrUnknownCompression)

	_, err := Decode(&buf, Options{Format: "toml"})
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(&buf, Options{Compression: "gzip"})
	require.ErrorIs(t, err, ErrUnknownCompression)
}
