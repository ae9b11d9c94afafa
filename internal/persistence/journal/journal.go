// Package journal appends dispatch records to hourly zstd-compressed JSONL
// files.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"escaperoom.ai/internal/room"
)

const hourLayout = "2006-01-02-15"

// segment is one open hourly file.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func (s *segment) close() error {
	flushErr := s.buf.Flush()
	encErr := s.zw.Close()
	fileErr := s.file.Close()
	return errors.Join(flushErr, encErr, fileErr)
}

// HourlyWriter appends JSON lines to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst,
// switching files when the UTC hour changes. Safe for concurrent use.
type HourlyWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	cur *segment
}

func NewHourlyWriter(dir, prefix string) *HourlyWriter {
	return &HourlyWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *HourlyWriter) pathFor(hour string) string {
	return filepath.Join(w.dir, w.prefix+"-"+hour+".jsonl.zst")
}

// Write appends v as one line and flushes it through the encoder, so a
// crash loses at most the current line.
func (w *HourlyWriter) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	seg, err := w.segmentLocked(w.now().UTC().Format(hourLayout))
	if err != nil {
		return err
	}
	if _, err := seg.buf.Write(line); err != nil {
		return err
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.zw.Flush()
}

func (w *HourlyWriter) segmentLocked(hour string) (*segment, error) {
	if w.cur != nil && w.cur.hour == hour {
		return w.cur, nil
	}
	if w.cur != nil {
		err := w.cur.close()
		w.cur = nil
		if err != nil {
			return nil, fmt.Errorf("close segment: %w", err)
		}
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(w.pathFor(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.cur = &segment{hour: hour, file: f, zw: zw, buf: bufio.NewWriterSize(zw, 32*1024)}
	return w.cur, nil
}

func (w *HourlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	err := w.cur.close()
	w.cur = nil
	return err
}

// DispatchJournal records every finished command under <dataDir>/dispatch.
type DispatchJournal struct {
	w      *HourlyWriter
	logger *log.Logger
}

func NewDispatchJournal(dataDir string, logger *log.Logger) *DispatchJournal {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DispatchJournal{
		w:      NewHourlyWriter(filepath.Join(dataDir, "dispatch"), "dispatch"),
		logger: logger,
	}
}

// RecordDispatch satisfies room.Recorder. Write errors are logged, not returned.
func (j *DispatchJournal) RecordDispatch(r room.DispatchRecord) {
	if err := j.w.Write(r); err != nil {
		j.logger.Printf("journal write id=%s err=%v", r.ID, err)
	}
}

func (j *DispatchJournal) Close() error { return j.w.Close() }

// ReadFile decodes every record in one journal file.
func ReadFile(path string) ([]room.DispatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []room.DispatchRecord
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r room.DispatchRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
