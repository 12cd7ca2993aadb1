package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a snapshot.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Compression is applied on top of the serialized snapshot.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionZstd   Compression = "zstd"
	CompressionLZ4    Compression = "lz4"
	CompressionBrotli Compression = "brotli"
)

// Options controls how snapshots are written and restored. The zero value
// writes uncompressed JSON with history and verifies fingerprints.
type Options struct {
	Format            Format
	Compression       Compression
	SkipHistory       bool
	IgnoreFingerprint bool
	Now               func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}

	return time.Now()
}

func (o Options) format() Format {
	if o.Format == "" {
		return FormatJSON
	}

	return o.Format
}

func (o Options) compression() Compression {
	if o.Compression == "" {
		return CompressionNone
	}

	return o.Compression
}

// OptionsForPath derives format and compression from a file name such as
// "machine.yaml.zst". Unknown extensions fall back to JSON, uncompressed.
func OptionsForPath(path string) Options {
	var opts Options

	name := strings.ToLower(filepath.Base(path))

	switch ext := filepath.Ext(name); ext {
	case ".zst", ".zstd":
		opts.Compression = CompressionZstd
		name = strings.TrimSuffix(name, ext)
	case ".lz4":
		opts.Compression = CompressionLZ4
		name = strings.TrimSuffix(name, ext)
	case ".br":
		opts.Compression = CompressionBrotli
		name = strings.TrimSuffix(name, ext)
	}

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		opts.Format = FormatYAML
	default:
		opts.Format = FormatJSON
	}

	return opts
}

// Encode writes snapshot to w.
func Encode(w io.Writer, snapshot Snapshot, opts Options) (err error) {
	compressed, err := compressWriter(w, opts.compression())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := compressed.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s writer: %w", opts.compression(), closeErr))
		}
	}()

	switch opts.format() {
	case FormatJSON:
		encoder := json.NewEncoder(compressed)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(snapshot); err != nil {
			return fmt.Errorf("encoding json snapshot: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(compressed)
		encoder.SetIndent(2)

		if err := encoder.Encode(snapshot); err != nil {
			return fmt.Errorf("encoding yaml snapshot: %w", err)
		}

		if err := encoder.Close(); err != nil {
			return fmt.Errorf("encoding yaml snapshot: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	return nil
}

// Decode reads a snapshot from r.
func Decode(r io.Reader, opts Options) (Snapshot, error) {
	var snapshot Snapshot

	reader, release, err := decompressReader(r, opts.compression())
	if err != nil {
		return snapshot, err
	}

	defer release()

	switch opts.format() {
	case FormatJSON:
		if err := json.NewDecoder(reader).Decode(&snapshot); err != nil {
			return snapshot, fmt.Errorf("decoding json snapshot: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(reader).Decode(&snapshot); err != nil {
			return snapshot, fmt.Errorf("decoding yaml snapshot: %w", err)
		}
	default:
		return snapshot, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	return snapshot, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}

		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionBrotli:
		return brotli.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}

func decompressReader(r io.Reader, compression Compression) (io.Reader, func(), error) {
	switch compression {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}

		return decoder, decoder.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionBrotli:
		return brotli.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}
