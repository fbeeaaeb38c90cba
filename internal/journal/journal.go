// Package journal records chunk state transitions as zstd-compressed JSON
// lines for offline inspection. No geometry is written.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/OCharnyshevich/voxel-terrain/internal/stream"
	"github.com/OCharnyshevich/voxel-terrain/pkg/world/coord"
)

// Entry is one journal line.
type Entry struct {
	Seq       uint64       `json:"seq"`
	Time      time.Time    `json:"time"`
	Chunk     coord.Chunk  `json:"chunk"`
	From      stream.State `json:"from"`
	To        stream.State `json:"to"`
	Handle    uuid.UUID    `json:"handle"`
	Triangles int          `json:"triangles,omitempty"`
	Climate   string       `json:"climate,omitempty"`
}

// Writer appends entries to a .jsonl.zst file. It implements
// stream.Listener.
type Writer struct {
	log *slog.Logger
	now func() time.Time

	mu  sync.Mutex
	seq uint64
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens path for writing, truncating any previous journal.
func Create(path string, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal encoder: %w", err)
	}
	return &Writer{
		log: log,
		now: time.Now,
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// OnTransition records t. Write errors are logged.
func (w *Writer) OnTransition(t stream.Transition) {
	e := Entry{
		Chunk:  t.Chunk,
		From:   t.From,
		To:     t.To,
		Handle: t.Handle,
	}
	if t.Mesh != nil {
		e.Triangles = t.Mesh.Triangles()
		e.Climate = t.Mesh.Climate.String()
	}
	if err := w.Write(e); err != nil {
		w.log.Error("write journal entry", "chunk", t.Chunk, "error", err)
	}
}

// Write appends e, assigning its sequence number and, when unset, its time.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return errors.New("journal closed")
	}

	w.seq++
	e.Seq = w.seq
	if e.Time.IsZero() {
		e.Time = w.now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered entries through the encoder.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.w, w.enc, w.f = nil, nil, nil
	return err
}

// Read decodes every entry from a journal stream.
func Read(r io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("journal line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// ReadFile decodes the journal at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
