package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	logPrefix = "capture"

	dataURLPrefix = "data:image/png;base64,"
)

var (
	ErrCameraBusy        = fmt.Errorf("camera is already open")
	ErrCameraUnavailable = fmt.Errorf("camera is unavailable")
	ErrCameraClosed      = fmt.Errorf("camera is not open")
	ErrNoFrame           = fmt.Errorf("no frame received yet")
)

// Facing selects the camera
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Track is one media track of a stream
type Track interface {
	Stop()
}

// Stream is a live video stream
type Stream interface {
	Frame() (image.Image, error)
	Tracks() []Track
}

// Camera - provider of video streams
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Photo is a captured frame encoded as png
type Photo struct {
	PNG        []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// DataURL returns the photo as an inline image
func (p Photo) DataURL() string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(p.PNG)
}

// Handle owns at most one open stream
type Handle struct {
	sync.Mutex
	camera Camera
	stream Stream
	now    func() time.Time
}

func NewHandle(camera Camera) *Handle {
	return &Handle{
		camera: camera,
		now:    time.Now,
	}
}

// Open acquires a stream for exclusive use
func (h *Handle) Open(ctx context.Context, facing Facing) error {
	h.Lock()
	defer h.Unlock()

	if h.stream != nil {
		return ErrCameraBusy
	}

	s, err := h.camera.Open(ctx, facing)
	if err != nil {
		log.WithField("prefix", logPrefix).Warnf("open camera: %s", err)
		return ErrCameraUnavailable
	}
	h.stream = s
	return nil
}

func (h *Handle) IsOpen() bool {
	h.Lock()
	defer h.Unlock()
	return h.stream != nil
}

// Stream returns the open stream
func (h *Handle) Stream() (Stream, error) {
	h.Lock()
	defer h.Unlock()
	if h.stream == nil {
		return nil, ErrCameraClosed
	}
	return h.stream, nil
}

// Capture grabs the current frame, then stops every track and closes the handle
func (h *Handle) Capture() (Photo, error) {
	h.Lock()
	defer h.Unlock()

	if h.stream == nil {
		return Photo{}, ErrCameraClosed
	}

	img, err := h.stream.Frame()
	if err != nil {
		return Photo{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Photo{}, err
	}

	h.release()

	b := img.Bounds()
	return Photo{
		PNG:        buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: h.now(),
	}, nil
}

// Close releases the stream, if any
func (h *Handle) Close() {
	h.Lock()
	defer h.Unlock()
	h.release()
}

// release must be called with the lock held
func (h *Handle) release() {
	if h.stream == nil {
		return
	}
	for _, t := range h.stream.Tracks() {
		t.Stop()
	}
	h.stream = nil
}
