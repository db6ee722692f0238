package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/engine"
	"github.com/zhiyu/hypergen/logging"
)

// Item is one line of a batch input file. The goal is read from
// "ori.inputs", falling back to "prompt"; every other field is carried to
// the output line untouched.
type Item struct {
	ID    string
	Input string

	fields map[string]json.RawMessage
}

// EngineFactory builds the engine that runs one item. logger already
// carries the item's log file when per-item records are enabled.
type EngineFactory func(ctx context.Context, item Item, logger logging.Logger) (*engine.Engine, error)

// Options holds configuration overrides passed to New().
type Options struct {
	// Start and End select items[Start:End]. End <= 0 means through the end.
	Start int
	End   int
	// DoneFlag, when set, is written once the batch completes.
	DoneFlag string
	// RecordsDir, when set, receives <RecordsDir>/<item id>/engine.log.
	RecordsDir string
	// LogLevel is the level of the per-item log files.
	LogLevel logging.LogLevel
	// Fs is the filesystem inputs and outputs live on. Defaults to the OS.
	Fs afero.Fs
	// Logger is the process logger.
	Logger logging.Logger
}

// Summary counts what one batch did.
type Summary struct {
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
}

// Runner runs a JSONL batch item by item. Items never share an engine; a
// failing item is logged and skipped. Public methods are safe for
// concurrent use.
type Runner struct {
	factory EngineFactory
	opts    Options

	activeRuns map[string]*engine.Engine
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(factory EngineFactory, optFns ...func(o *Options)) *Runner {
	opts := Options{
		LogLevel: logging.LogLevelInfo,
		Fs:       afero.NewOsFs(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		factory:    factory,
		opts:       opts,
		activeRuns: make(map[string]*engine.Engine),
	}
}

// Run processes the selected items of input and appends one line per
// finished item to output. Items whose input already appears in output are
// skipped. Only I/O errors and cancellation abort the batch.
func (r *Runner) Run(ctx context.Context, input, output string) (Summary, error) {
	var sum Summary
	items, err := ReadItems(r.opts.Fs, input)
	if err != nil {
		return sum, err
	}
	items = selectRange(items, r.opts.Start, r.opts.End)
	sum.Total = len(items)

	done, err := r.doneInputs(output)
	if err != nil {
		return sum, err
	}
	if len(done) > 0 {
		pending := items[:0:0]
		for _, it := range items {
			if done[it.Input] {
				sum.Skipped++
				continue
			}
			pending = append(pending, it)
		}
		r.opts.Logger.Info("resuming batch", "done", len(done), "left", len(pending))
		items = pending
	}
	r.opts.Logger.Info("batch started", "items", len(items), "output", output)

	if dir := filepath.Dir(output); dir != "" {
		if err := r.opts.Fs.MkdirAll(dir, 0o755); err != nil {
			return sum, fmt.Errorf("create output dir: %w", err)
		}
	}
	out, err := r.opts.Fs.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return sum, fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		result, err := r.RunItem(ctx, it)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			sum.Failed++
			r.opts.Logger.Error("item failed", "item", it.ID, "input", it.Input, "error", err)
			continue
		}
		line, err := it.withResult(result)
		if err != nil {
			return sum, err
		}
		if _, err := out.Write(line); err != nil {
			return sum, fmt.Errorf("write output: %w", err)
		}
		sum.Succeeded++
	}

	if r.opts.DoneFlag != "" {
		if err := afero.WriteFile(r.opts.Fs, r.opts.DoneFlag, []byte("done"), 0o644); err != nil {
			return sum, fmt.Errorf("write done flag: %w", err)
		}
	}
	r.opts.Logger.Info("batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// RunItem runs one item to completion. A run that hits the step ceiling
// still yields its sentinel result; a stopped run yields an error so the
// item is retried on resume.
func (r *Runner) RunItem(ctx context.Context, it Item) (string, error) {
	logger, closeLog, err := r.itemLogger(it)
	if err != nil {
		return "", err
	}
	defer closeLog()

	eng, err := r.factory(ctx, it, logger)
	if err != nil {
		return "", fmt.Errorf("item %s: build engine: %w", it.ID, err)
	}
	r.mu.Lock()
	r.activeRuns[it.ID] = eng
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, it.ID)
		r.mu.Unlock()
	}()

	start := time.Now()
	result, err := eng.Run(ctx)
	if errors.Is(err, core.ErrOutOfSteps) {
		logger.Warn("item ran out of steps", "item", it.ID, "steps", eng.Steps())
		err = nil
	}
	if rr, ok := logger.(logging.RunRecorder); ok {
		rr.LogRun(it.ID, eng.Steps(), time.Since(start), err)
	}
	if err != nil {
		return "", fmt.Errorf("item %s: %w", it.ID, err)
	}
	return result, nil
}

// Stop asks the engine running the item with the given id to halt.
func (r *Runner) Stop(itemID string) error {
	r.mu.RLock()
	eng, exists := r.activeRuns[itemID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", itemID)
	}

	eng.Stop()

	return nil
}

func (r *Runner) itemLogger(it Item) (logging.Logger, func(), error) {
	if r.opts.RecordsDir == "" {
		return r.opts.Logger, func() {}, nil
	}
	dir := filepath.Join(r.opts.RecordsDir, it.ID)
	if err := r.opts.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("item %s: create records dir: %w", it.ID, err)
	}
	f, err := r.opts.Fs.OpenFile(filepath.Join(dir, "engine.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("item %s: open log: %w", it.ID, err)
	}
	file := logging.NewLogger(&logging.LoggerConfig{
		Level:     r.opts.LogLevel,
		Format:    "json",
		Output:    f,
		Component: "engine",
		ItemID:    it.ID,
	})
	return logging.Tee(r.opts.Logger, file), func() { _ = f.Close() }, nil
}

func (r *Runner) doneInputs(output string) (map[string]bool, error) {
	ok, err := afero.Exists(r.opts.Fs, output)
	if err != nil || !ok {
		return nil, err
	}
	items, err := ReadItems(r.opts.Fs, output)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(items))
	for _, it := range items {
		done[it.Input] = true
	}
	return done, nil
}

func selectRange(items []Item, start, end int) []Item {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(items) {
		end = len(items)
	}
	if start >= end {
		return nil
	}
	return items[start:end]
}

// ReadItems parses a JSONL batch file. Blank and malformed lines are
// skipped.
func ReadItems(fsys afero.Fs, path string) ([]Item, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var items []Item
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadBytes('\n')
		if it, ok := parseItem(bytes.TrimSpace(line)); ok {
			items = append(items, it)
		}
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

func parseItem(line []byte) (Item, bool) {
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return Item{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Item{}, false
	}
	input := gjson.GetBytes(line, "ori.inputs")
	if !input.Exists() {
		input = gjson.GetBytes(line, "prompt")
	}
	return Item{
		ID:     gjson.GetBytes(line, "id").String(),
		Input:  input.String(),
		fields: fields,
	}, true
}

func (it Item) withResult(result string) ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(it.fields)+1)
	for k, v := range it.fields {
		fields[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	fields["result"] = json.RawMessage(bytes.TrimSpace(buf.Bytes()))

	buf.Reset()
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode item %s: %w", it.ID, err)
	}
	return buf.Bytes(), nil
}
