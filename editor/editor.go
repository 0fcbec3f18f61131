// Package editor holds the state of a create or edit form: field values
// mirrored to drafts, validation with self-clearing messages, and a submit
// that only clears the drafts once the save has succeeded.
package editor

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/youssefsiam38/activitypg/debounce"
	"github.com/youssefsiam38/activitypg/draft"
)

// ErrorDisplayDuration is how long validation messages stay visible.
const ErrorDisplayDuration = 3000 * time.Millisecond

// Mode is the purpose of an open editor.
type Mode int

const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	default:
		return "closed"
	}
}

// Values holds field values by field name.
type Values map[string]string

// SaveFunc persists values. It is called only with valid values.
type SaveFunc func(ctx context.Context, mode Mode, values Values) error

// Logger is the logging interface used by this package.
// Compatible with activitypg.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures an Editor.
type Config struct {
	// Drafts mirrors field values. Nil keeps values in memory only.
	Drafts *draft.Drafts

	// Clock drives the error display timer. Defaults to the real clock.
	Clock clock.WithDelayedExecution

	// ErrorDuration overrides ErrorDisplayDuration.
	ErrorDuration time.Duration

	// Logger for save failures. Nil disables logging.
	Logger Logger
}

// Editor is a form over a fixed set of fields. It is safe for concurrent
// use.
type Editor struct {
	fields []Field
	save   SaveFunc
	drafts *draft.Drafts
	logger Logger
	expire *debounce.Debouncer[struct{}]

	mu         sync.Mutex
	mode       Mode
	values     Values
	errs       ValidationErrors
	submitting bool
}

// New creates a closed editor over fields.
func New(fields []Field, save SaveFunc, cfg *Config) *Editor {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Drafts == nil {
		c.Drafts = draft.New(nil, nil)
	}
	if c.ErrorDuration <= 0 {
		c.ErrorDuration = ErrorDisplayDuration
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}

	e := &Editor{
		fields: fields,
		save:   save,
		drafts: c.Drafts,
		logger: c.Logger,
		values: make(Values),
	}
	var opts []debounce.Option
	if c.Clock != nil {
		opts = append(opts, debounce.WithClock(c.Clock))
	}
	e.expire = debounce.New(c.ErrorDuration, func(struct{}) { e.clearErrors() }, opts...)
	return e
}

// Open starts editing in mode. Each field is loaded from its draft, falling
// back to current (the record being edited) and then the field default.
func (e *Editor) Open(mode Mode, current Values) {
	values := make(Values, len(e.fields))
	for _, f := range e.fields {
		fallback, ok := current[f.Name]
		if !ok || fallback == "" {
			fallback = f.Default
		}
		values[f.Name] = e.drafts.Load(f.Slot, fallback)
	}

	e.mu.Lock()
	e.mode = mode
	e.values = values
	e.errs = nil
	e.mu.Unlock()
	e.expire.Cancel()
}

// Set changes a field and saves it to its draft slot.
func (e *Editor) Set(name, value string) error {
	f, ok := e.field(name)
	if !ok {
		return ErrUnknownField
	}
	e.mu.Lock()
	e.values[name] = value
	e.mu.Unlock()
	e.drafts.Save(f.Slot, value)
	return nil
}

// Value returns the current value of a field.
func (e *Editor) Value(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values[name]
}

// Values returns a copy of all field values.
func (e *Editor) Values() Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(Values, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Mode returns the current mode.
func (e *Editor) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Submitting reports whether a save is in flight.
func (e *Editor) Submitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

// Errors returns the visible validation messages.
func (e *Editor) Errors() ValidationErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs.clone()
}

// Validate checks every field. Messages become visible and are cleared
// after the error display duration. It returns nil when all fields are
// valid.
func (e *Editor) Validate() ValidationErrors {
	values := e.Values()
	errs := make(ValidationErrors)
	for _, f := range e.fields {
		if msg := f.Check(values[f.Name]); msg != "" {
			errs[f.Name] = msg
		}
	}
	if len(errs) == 0 {
		errs = nil
	}

	e.mu.Lock()
	e.errs = errs.clone()
	e.mu.Unlock()

	if errs != nil {
		e.expire.Trigger(struct{}{})
	} else {
		e.expire.Cancel()
	}
	return errs
}

// Submit validates and saves. On success the drafts are cleared and the
// editor closes; on failure the values and drafts are kept and the error is
// returned. Invalid input returns ValidationErrors without calling save.
func (e *Editor) Submit(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.mode == ModeClosed:
		e.mu.Unlock()
		return ErrClosed
	case e.submitting:
		e.mu.Unlock()
		return ErrSubmitting
	}
	e.mu.Unlock()

	if errs := e.Validate(); errs != nil {
		return errs
	}

	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return ErrSubmitting
	}
	e.submitting = true
	mode := e.mode
	values := make(Values, len(e.values))
	for k, v := range e.values {
		values[k] = v
	}
	e.mu.Unlock()

	err := e.save(ctx, mode, values)

	e.mu.Lock()
	e.submitting = false
	if err == nil {
		e.mode = ModeClosed
		e.values = make(Values)
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("editor save failed", "mode", mode.String(), "error", err)
		return err
	}
	e.drafts.Clear(Slots(e.fields)...)
	return nil
}

// Cancel discards the input and its drafts and closes the editor.
func (e *Editor) Cancel() {
	e.mu.Lock()
	e.mode = ModeClosed
	e.values = make(Values)
	e.errs = nil
	e.mu.Unlock()
	e.expire.Cancel()
	e.drafts.Clear(Slots(e.fields)...)
}

// Dismiss closes the editor and keeps the drafts for the next Open.
func (e *Editor) Dismiss() {
	e.mu.Lock()
	e.mode = ModeClosed
	e.errs = nil
	e.mu.Unlock()
	e.expire.Cancel()
}

// Close stops the error timer. The editor must not be used afterwards.
func (e *Editor) Close() {
	e.expire.Stop()
}

func (e *Editor) field(name string) (Field, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (e *Editor) clearErrors() {
	e.mu.Lock()
	e.errs = nil
	e.mu.Unlock()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
