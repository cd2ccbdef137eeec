package dictation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const pingInterval = 30 * time.Second

// Upgrader accepts dictation sockets. Origins are checked by the router's cors policy.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame types
const (
	FrameHello      = "hello"
	FrameStart      = "start"
	FrameTranscript = "transcript"
	FrameStop       = "stop"
	FrameRecognizer = "recognizer"
	FrameValue      = "value"
	FrameError      = "error"
)

// Frame is the message exchanged over the dictation socket.
//
// Client to server: hello{supported}, start{field}, transcript{field, text}, stop{field}.
// Server to client: recognizer{action, language, continuous}, value{field, value}, error{message}.
type Frame struct {
	Type       string `json:"type"`
	Field      string `json:"field,omitempty"`
	Text       string `json:"text,omitempty"`
	Value      string `json:"value,omitempty"`
	Supported  bool   `json:"supported,omitempty"`
	Action     string `json:"action,omitempty"`
	Language   string `json:"language,omitempty"`
	Continuous bool   `json:"continuous,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Fields is the form the dictated values are written into
type Fields interface {
	Value(field string) (string, error)
	SetValue(field, value string) error
}

// Slot admits one dictation socket per form, so a single arbiter
// decides which field holds the recognizer.
type Slot struct {
	mu       sync.Mutex
	attached bool
}

// Attach takes the slot. The returned release frees it and may be called
// more than once.
func (s *Slot) Attach() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return nil, ErrAttached
	}
	s.attached = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.attached = false
			s.mu.Unlock()
		})
	}, nil
}

// Attached tells whether a socket holds the slot
func (s *Slot) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// remoteRecognizer drives the recognizer running in the browser
type remoteRecognizer struct {
	session   *session
	supported bool
}

func (r *remoteRecognizer) Supported() bool {
	return r.supported
}

func (r *remoteRecognizer) Start(language string, continuous bool) error {
	return r.session.write(Frame{Type: FrameRecognizer, Action: "start", Language: language, Continuous: continuous})
}

func (r *remoteRecognizer) Stop() error {
	return r.session.write(Frame{Type: FrameRecognizer, Action: "stop"})
}

type session struct {
	sync.Mutex
	conn   *websocket.Conn
	fields Fields
	holder *Handle
}

func (s *session) write(f Frame) error {
	s.Lock()
	defer s.Unlock()
	return s.conn.WriteJSON(f)
}

func (s *session) fail(err error) {
	if werr := s.write(Frame{Type: FrameError, Message: err.Error()}); werr != nil {
		log.WithField("prefix", logPrefix).Errorf("write error frame: %s", werr)
	}
}

// Serve runs a dictation socket until the client leaves or ctx is done.
// The recognizer lives in the browser; the arbiter runs here.
func Serve(ctx context.Context, conn *websocket.Conn, fields Fields) {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{conn: conn, fields: fields}
	recognizer := &remoteRecognizer{session: s}

	arbiter := NewArbiter(recognizer, func(field, value string) {
		if err := fields.SetValue(field, value); err != nil {
			log.WithField("prefix", logPrefix).WithField("field", field).Errorf("set value: %s", err)
			return
		}
		if err := s.write(Frame{Type: FrameValue, Field: field, Value: value}); err != nil {
			log.WithField("prefix", logPrefix).Errorf("write value frame: %s", err)
		}
	})

	defer func() {
		arbiter.Close()
		cancel()
		conn.Close()
		log.WithField("prefix", logPrefix).Debug("dictation socket closed")
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				s.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				s.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithField("prefix", logPrefix).Warnf("read frame: %s", err)
			}
			return
		}

		switch f.Type {
		case FrameHello:
			recognizer.supported = f.Supported
		case FrameStart:
			s.start(arbiter, f.Field)
		case FrameTranscript:
			s.transcript(f.Field, f.Text)
		case FrameStop:
			s.stop(f.Field)
		default:
			s.fail(fmt.Errorf("unknown frame type %q", f.Type))
		}
	}
}

func (s *session) start(arbiter *Arbiter, field string) {
	current, err := s.fields.Value(field)
	if err != nil {
		s.fail(err)
		return
	}

	h, err := arbiter.Acquire(field, current)
	if err != nil {
		s.fail(err)
		return
	}
	s.holder = h
}

func (s *session) transcript(field, text string) {
	if s.holder == nil || s.holder.Field() != field {
		log.WithField("prefix", logPrefix).WithField("field", field).Debug("drop transcript of a field that is not listening")
		return
	}
	if err := s.holder.Feed(text); err != nil {
		log.WithField("prefix", logPrefix).WithField("field", field).Debugf("drop transcript: %s", err)
	}
}

func (s *session) stop(field string) {
	if s.holder == nil || s.holder.Field() != field {
		s.fail(ErrNotHolder)
		return
	}
	if _, err := s.holder.Release(); err != nil {
		s.fail(err)
	}
	s.holder = nil
}
