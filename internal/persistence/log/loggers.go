package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"caravan.ai/internal/protocol"
)

var ErrClosed = errors.New("plan log closed")

const hourLayout = "2006-01-02-15"

// PlanLogger appends plan events to hourly zstd JSONL files named
// plans-YYYY-MM-DD-HH.jsonl.zst. The hour comes from the logger's clock in UTC.
type PlanLogger struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	closed  bool
	hour    string
	written uint64
	file    *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
	// line is the scratch buffer for one record.
	line []byte
}

func NewPlanLogger(dir string) *PlanLogger {
	return &PlanLogger{dir: dir, now: time.Now}
}

// RecordPlan writes ev as one line and flushes it into the zstd stream.
func (l *PlanLogger) RecordPlan(ev protocol.PlanEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	if hour := l.now().UTC().Format(hourLayout); hour != l.hour {
		if err := l.openHour(hour); err != nil {
			return fmt.Errorf("plan log %s: %w", hour, err)
		}
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.line = append(append(l.line[:0], b...), '\n')
	if _, err := l.buf.Write(l.line); err != nil {
		return err
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	l.written++
	return nil
}

// Written is the number of events recorded since the logger was created.
func (l *PlanLogger) Written() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close finishes the current file. Later RecordPlan calls return ErrClosed.
func (l *PlanLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return l.closeFile()
}

// openHour switches to the file for hour, appending when it already exists
// (a restarted run keeps writing into the same hour as a new zstd frame).
func (l *PlanLogger) openHour(hour string) error {
	if err := l.closeFile(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(l.dir, fileName(PlanPrefix, hour)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.file, l.enc = f, enc
	l.buf = bufio.NewWriterSize(enc, 64*1024)
	l.hour = hour
	return nil
}

func (l *PlanLogger) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.buf.Flush()
	if cerr := l.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file, l.enc, l.buf = nil, nil, nil
	l.hour = ""
	return err
}

func fileName(prefix, hour string) string {
	return fmt.Sprintf("%s-%s.jsonl.zst", prefix, hour)
}
