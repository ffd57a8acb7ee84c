package audit

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var (
	ErrQueueFull      = errors.New("audit queue full")
	ErrClosed         = errors.New("audit writer closed")
	ErrNotStarted     = errors.New("audit writer not started")
	ErrAlreadyStarted = errors.New("audit writer already started")
)

var codec = sonic.ConfigStd

// Config controls the audit writer.
type Config struct {
	Dir           string        `json:"dir"`
	FilePrefix    string        `json:"filePrefix"`
	QueueSize     int           `json:"queueSize"`
	FlushInterval time.Duration `json:"flushInterval"`
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = "audit"
	}
	if c.QueueSize == 0 {
		c.QueueSize = 1024
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = time.Second
	}
	return c
}

// Writer appends one JSON line per cycle record to a per-day file from
// a buffered queue. Append-only; records are never rewritten.
type Writer struct {
	cfg Config
	ch  chan CycleRecord
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates an audit writer and ensures the directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("audit dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{cfg: cfg, ch: make(chan CycleRecord, cfg.QueueSize)}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes buffered records.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (w *Writer) setErr(err error) {
	if w.err.Load() == nil {
		w.err.Store(err)
	}
}

// TryAppend enqueues a record without blocking, assigning its id.
func (w *Writer) TryAppend(rec CycleRecord) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	select {
	case w.ch <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

type dayFile struct {
	day  string
	file *os.File
	buf  *bufio.Writer
}

func (w *Writer) run(ctx context.Context) {
	var (
		out    *dayFile
		flushC <-chan time.Time
	)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	flushC = ticker.C

	defer func() {
		ticker.Stop()
		if err := w.closeFile(out); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drain(&out)
			return
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(&out, rec); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if out != nil {
				if err := out.buf.Flush(); err != nil {
					w.setErr(err)
					return
				}
			}
		}
	}
}

func (w *Writer) drain(out **dayFile) {
	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(out, rec); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

// writeRecord appends one JSONL line, rotating to a new file at each
// UTC day boundary.
func (w *Writer) writeRecord(out **dayFile, rec CycleRecord) error {
	day := rec.Timestamp.UTC().Format("20060102")
	if *out == nil || (*out).day != day {
		if err := w.closeFile(*out); err != nil {
			return err
		}
		path := filepath.Join(w.cfg.Dir, w.cfg.FilePrefix+"-"+day+".jsonl")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		*out = &dayFile{day: day, file: file, buf: bufio.NewWriter(file)}
	}

	line, err := codec.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := (*out).buf.Write(line); err != nil {
		return err
	}
	return (*out).buf.WriteByte('\n')
}

func (w *Writer) closeFile(out *dayFile) error {
	if out == nil {
		return nil
	}
	if err := out.buf.Flush(); err != nil {
		out.file.Close()
		return err
	}
	return out.file.Close()
}

// ReadAll loads every record from one day file, oldest first. Used by
// tests and post-hoc debugging tools.
func ReadAll(path string) ([]CycleRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []CycleRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec CycleRecord
		if err := codec.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
