// Package record stores the server messages a bot receives as zstd
// compressed JSON lines, so a game can be replayed through a fresh session.
package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const maxLine = 8 * 1024 * 1024

// Entry is one recorded server message.
type Entry struct {
	Time    time.Time       `json:"t"`
	Message json.RawMessage `json:"msg"`
}

// Writer appends entries to a single transcript file.
type Writer struct {
	path  string
	clock quartz.Clock

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens a new transcript named <prefix>-<id>.jsonl.zst in dir.
func Create(dir, prefix string, clock quartz.Clock) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl.zst", prefix, uuid.NewString()[:8]))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Writer{
		path:  path,
		clock: clock,
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// Path is the transcript file path.
func (w *Writer) Path() string { return w.path }

// Record appends raw as one line. Each line is flushed so a crashed bot
// still leaves a readable transcript up to the last complete frame.
func (w *Writer) Record(raw json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return errors.New("transcript is closed")
	}

	b, err := json.Marshal(Entry{Time: w.clock.Now().UTC(), Message: raw})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Close finishes the zstd frame and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	_ = w.w.Flush()
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.enc, w.w, w.f = nil, nil, nil
	return err
}

// Reader iterates over a transcript.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

// Open opens a transcript for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next entry, or io.EOF after the last one. A transcript cut
// off mid-frame ends at its last complete line.
func (r *Reader) Next() (Entry, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return Entry{}, fmt.Errorf("%s: unmarshal: %w", filepath.Base(r.f.Name()), err)
		}
		return e, nil
	}
	if err := r.sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Entry{}, err
	}
	return Entry{}, io.EOF
}

// Close releases the decoder and the file.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// ReadAll loads every entry of the transcript at path.
func ReadAll(path string) ([]Entry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var out []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
