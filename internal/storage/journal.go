// Package storage keeps an append-only JSONL journal on disk.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrClosed     = errors.New("journal: closed")
	ErrBufferFull = errors.New("journal: buffer full")
)

// Journal writes records as JSON lines on a background goroutine. Files are
// grouped in one directory per UTC day: dir/2006-01-02/name.jsonl.
type Journal struct {
	dir       string
	name      string
	maxSizeMB int
	now       func() time.Time

	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	closed      bool
}

// NewJournal starts a journal. bufferSize bounds queued records; Write never blocks.
func NewJournal(dir, name string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	j := &Journal{
		dir:       dir,
		name:      name,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Write queues record.
func (j *Journal) Write(record any) error {
	select {
	case <-j.done:
		return ErrClosed
	default:
	}
	select {
	case j.writeCh <- record:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "journal", j.name)
		return ErrBufferFull
	}
}

// Close flushes queued records and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.done)
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		return j.logger.Close()
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case record := <-j.writeCh:
			j.writeRecord(record)
		case <-j.done:
			for {
				select {
				case record := <-j.writeCh:
					j.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("journal marshal failed", "journal", j.name, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := j.now().UTC().Format(time.DateOnly)
	if date != j.currentDate || j.logger == nil {
		if err := j.rotate(date); err != nil {
			slog.Error("journal rotate failed", "journal", j.name, "error", err)
			return
		}
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "journal", j.name, "error", err)
	}
}

func (j *Journal) rotate(date string) error {
	if j.logger != nil {
		_ = j.logger.Close()
		j.logger = nil
	}
	dir := filepath.Join(j.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	filename := filepath.Join(dir, j.name+".jsonl")
	j.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    j.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	j.currentDate = date
	slog.Debug("journal file opened", "file", filename)
	return nil
}

// Path returns the file records written at t land in.
func (j *Journal) Path(t time.Time) string {
	return filepath.Join(j.dir, t.UTC().Format(time.DateOnly), j.name+".jsonl")
}
