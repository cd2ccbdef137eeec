package dictation

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	logPrefix = "dictation"

	// Language of the recognizer
	Language = "ko-KR"
)

var (
	ErrUnsupported = fmt.Errorf("speech recognition is not supported")
	ErrNotHolder   = fmt.Errorf("field does not hold the recognizer")
	ErrAttached    = fmt.Errorf("dictation is already attached to the form")
)

// Recognizer - speech recognition provider
type Recognizer interface {
	Supported() bool
	Start(language string, continuous bool) error
	Stop() error
}

// ChangeFunc receives every value written into a field
type ChangeFunc func(field, value string)

// Handle is the proof that a field holds the recognizer. A handle goes stale
// once another field acquires the recognizer.
type Handle struct {
	arbiter    *Arbiter
	field      string
	generation uint64
}

func (h *Handle) Field() string {
	return h.field
}

// Release commits the transcript into the field and frees the recognizer
func (h *Handle) Release() (string, error) {
	return h.arbiter.release(h)
}

// Arbiter routes one recognizer to at most one field at a time. The live
// transcript is written into the holder's value as it arrives.
type Arbiter struct {
	sync.Mutex

	recognizer Recognizer
	onChange   ChangeFunc

	holder     *Handle
	generation uint64
	base       string
	transcript string
}

func NewArbiter(recognizer Recognizer, onChange ChangeFunc) *Arbiter {
	return &Arbiter{
		recognizer: recognizer,
		onChange:   onChange,
	}
}

// Acquire hands the recognizer to field. current is the value the field holds
// now; dictated text is appended to it. A field that holds the recognizer
// already keeps its handle.
func (a *Arbiter) Acquire(field, current string) (*Handle, error) {
	if !a.recognizer.Supported() {
		return nil, ErrUnsupported
	}

	a.Lock()
	defer a.Unlock()

	if a.holder != nil && a.holder.field == field {
		return a.holder, nil
	}

	if a.holder != nil {
		if err := a.recognizer.Stop(); err != nil {
			log.WithField("prefix", logPrefix).WithField("field", a.holder.field).Errorf("stop recognizer: %s", err)
		}
		a.commit()
	}

	a.generation++
	h := &Handle{arbiter: a, field: field, generation: a.generation}
	a.base = current
	a.transcript = ""

	if err := a.recognizer.Start(Language, true); err != nil {
		a.holder = nil
		return nil, err
	}
	a.holder = h
	return h, nil
}

// commit writes base+transcript into the holder and clears the transcript.
// It must be called with the lock held.
func (a *Arbiter) commit() string {
	value := a.base + a.transcript
	field := a.holder.field
	a.holder = nil
	a.base = ""
	a.transcript = ""
	if a.onChange != nil {
		a.onChange(field, value)
	}
	return value
}

// Feed takes the cumulative transcript since recognition started and writes
// it into the field's value. A stale handle is refused so late results never
// reach the next field.
func (h *Handle) Feed(transcript string) error {
	return h.arbiter.feed(h, transcript)
}

func (a *Arbiter) feed(h *Handle, transcript string) error {
	a.Lock()
	defer a.Unlock()

	if a.holder == nil || a.holder.generation != h.generation {
		return ErrNotHolder
	}
	a.transcript = transcript
	if a.onChange != nil {
		a.onChange(h.field, a.base+a.transcript)
	}
	return nil
}

// Holder returns the field listening now, empty when none
func (a *Arbiter) Holder() string {
	a.Lock()
	defer a.Unlock()
	if a.holder == nil {
		return ""
	}
	return a.holder.field
}

func (a *Arbiter) release(h *Handle) (string, error) {
	a.Lock()
	defer a.Unlock()

	if a.holder == nil || a.holder.generation != h.generation {
		return "", ErrNotHolder
	}

	if err := a.recognizer.Stop(); err != nil {
		log.WithField("prefix", logPrefix).WithField("field", h.field).Errorf("stop recognizer: %s", err)
	}
	return a.commit(), nil
}

// Close stops recognition and commits whatever was transcribed
func (a *Arbiter) Close() {
	a.Lock()
	defer a.Unlock()
	if a.holder != nil {
		_ = a.recognizer.Stop()
		a.commit()
	}
}
