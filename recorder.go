package paramount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Func is the call shape of an instrumentable function: positional
// arguments in declaration order plus keyword arguments by name.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Function declares an instrumentable function: its stable name, the
// names of its positional parameters, and the callable itself.
type Function struct {
	Name   string
	Params []string
	Call   Func
}

// Store is the write surface the recorder persists through. Both storage
// backends in store/ satisfy it.
type Store interface {
	CreateOrAppend(ctx context.Context, table, primaryKey string, rows []Row) error
}

// Recorder wraps functions so that every invocation is captured as one
// Recording row and persisted off the caller's critical path. Persistence
// is fire and forget: rows go through a bounded queue drained by a single
// writer goroutine, and a full queue drops the row rather than block.
type Recorder struct {
	store   Store
	log     *logrus.Logger
	enabled bool
	table   string

	queue chan Row
	done  chan struct{}

	mu  sync.RWMutex
	fns map[string]Function
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger overrides the recorder's logger.
func WithLogger(l *logrus.Logger) Option { return func(r *Recorder) { r.log = l } }

// WithEnabled toggles recording. When disabled, wrapped functions call
// straight through with no capture overhead.
func WithEnabled(enabled bool) Option { return func(r *Recorder) { r.enabled = enabled } }

// WithTable overrides the recordings table name.
func WithTable(table string) Option { return func(r *Recorder) { r.table = table } }

// WithQueueSize overrides the persistence queue capacity.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Row, n)
		}
	}
}

// NewRecorder builds a Recorder over the given store and starts its
// persistence worker. Call Close to drain and stop it.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		log:     logrus.New(),
		enabled: true,
		table:   TableRecordings,
		queue:   make(chan Row, defaultQueueCapacity),
		done:    make(chan struct{}),
		fns:     make(map[string]Function),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.runWriter()
	return r
}

// Record registers fn for remote invocation and returns a wrapped callable.
//
// The wrapper re-raises the function's own error unchanged; a failed call
// is never recorded and never masked. Failures on the recording side
// (serialization, row building, persistence) are logged and swallowed so a
// broken recording path cannot break production behavior. A streaming
// result is handed back unrecorded.
func (r *Recorder) Record(fn Function) Func {
	r.mu.Lock()
	r.fns[fn.Name] = fn
	r.mu.Unlock()

	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		if !r.enabled {
			return fn.Call(ctx, args, kwargs)
		}

		start := time.Now().UTC()
		result, err := fn.Call(ctx, args, kwargs)
		end := time.Now().UTC()
		if err != nil {
			r.log.WithError(err).WithField("function", fn.Name).Error("recorded function returned error")
			return result, err
		}

		r.capture(fn, args, kwargs, result, start, end)
		return result, nil
	}
}

func (r *Recorder) capture(fn Function, args []any, kwargs map[string]any, result any, start, end time.Time) {
	outputs, err := SerializeResult(result)
	if err != nil {
		if errors.Is(err, ErrStreamingResult) {
			r.log.WithField("function", fn.Name).Debug("streaming result, skipping recording")
			return
		}
		r.log.WithError(err).WithField("function", fn.Name).Error("failed to serialize result")
		return
	}

	serializedArgs := make([]any, len(args))
	for i, a := range args {
		serializedArgs[i] = serializeInput(a)
	}
	serializedKwargs := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		serializedKwargs[k] = serializeInput(v)
	}

	row, err := BuildRow(fn, serializedArgs, serializedKwargs, outputs, start, end)
	if err != nil {
		r.log.WithError(err).WithField("function", fn.Name).Error("failed to build recording row")
		return
	}
	if !r.enqueue(row) {
		r.log.WithField("function", fn.Name).Warn("recording queue full, dropping row")
	}
}

// Inputs degrade to their string form rather than ever failing the capture.
func serializeInput(v any) any {
	s, err := Serialize(v)
	if err != nil {
		return unrecordableInput
	}
	return s
}

const unrecordableInput = "<unserializable>"

func (r *Recorder) function(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}
