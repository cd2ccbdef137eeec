package capture

import (
	"context"
	"image"
	"sync"
)

// PushCamera is a camera whose frames are sent by the client. The browser
// owns the device; this side only keeps the latest frame.
type PushCamera struct {
	Available bool
}

func (c PushCamera) Open(_ context.Context, facing Facing) (Stream, error) {
	if !c.Available {
		return nil, ErrCameraUnavailable
	}
	return &PushStream{
		facing: facing,
		track:  &pushTrack{},
	}, nil
}

type pushTrack struct {
	sync.Mutex
	stopped bool
}

func (t *pushTrack) Stop() {
	t.Lock()
	defer t.Unlock()
	t.stopped = true
}

func (t *pushTrack) isStopped() bool {
	t.Lock()
	defer t.Unlock()
	return t.stopped
}

// PushStream holds the latest frame pushed by the client
type PushStream struct {
	sync.Mutex
	facing Facing
	latest image.Image
	track  *pushTrack
}

// Push replaces the current frame
func (s *PushStream) Push(img image.Image) error {
	if s.track.isStopped() {
		return ErrCameraClosed
	}
	s.Lock()
	defer s.Unlock()
	s.latest = img
	return nil
}

func (s *PushStream) Frame() (image.Image, error) {
	if s.track.isStopped() {
		return nil, ErrCameraClosed
	}
	s.Lock()
	defer s.Unlock()
	if s.latest == nil {
		return nil, ErrNoFrame
	}
	return s.latest, nil
}

func (s *PushStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *PushStream) Facing() Facing {
	return s.facing
}
