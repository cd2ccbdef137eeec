package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stl-inc/as-report-api/capture"
	"github.com/stl-inc/as-report-api/dictation"
	"github.com/stl-inc/as-report-api/schema"
)

var (
	ErrDraftNotFound = fmt.Errorf("draft not found")
	ErrNotDictated   = fmt.Errorf("field does not accept dictation")
	ErrPhotoNotFound = fmt.Errorf("captured photo not found")
)

// Draft is a report being written in the editor
type Draft struct {
	sync.Mutex
	ID       string
	form     Form
	captured []capture.Photo
	camera   *capture.Handle
	speech   dictation.Slot
}

func newDraft(id string, form Form, camera capture.Camera) *Draft {
	return &Draft{
		ID:     id,
		form:   form,
		camera: capture.NewHandle(camera),
	}
}

// Form returns a copy of the current inputs
func (d *Draft) Form() Form {
	d.Lock()
	defer d.Unlock()
	return d.form.Clone()
}

func (d *Draft) Set(field, value string) error {
	d.Lock()
	defer d.Unlock()
	return d.form.Set(field, value)
}

func (d *Draft) Get(field string) (string, error) {
	d.Lock()
	defer d.Unlock()
	return d.form.Get(field)
}

// Value implements dictation.Fields
func (d *Draft) Value(field string) (string, error) {
	if !IsDictated(field) {
		return "", ErrNotDictated
	}
	return d.Get(field)
}

// SetValue implements dictation.Fields
func (d *Draft) SetValue(field, value string) error {
	if !IsDictated(field) {
		return ErrNotDictated
	}
	return d.Set(field, value)
}

func (d *Draft) Attach(bucket schema.Bucket, files ...Attachment) error {
	d.Lock()
	defer d.Unlock()
	return d.form.Attach(bucket, files...)
}

// Camera returns the camera handle of the draft
func (d *Draft) Camera() *capture.Handle {
	return d.camera
}

// Capture takes a photo from the open camera and keeps it with the draft.
// It returns the photo with its position among the captured photos.
func (d *Draft) Capture() (capture.Photo, int, error) {
	p, err := d.camera.Capture()
	if err != nil {
		return p, 0, err
	}
	d.Lock()
	defer d.Unlock()
	d.captured = append(d.captured, p)
	return p, len(d.captured) - 1, nil
}

// Captured returns the photos taken so far, in capture order
func (d *Draft) Captured() []capture.Photo {
	d.Lock()
	defer d.Unlock()
	return append([]capture.Photo(nil), d.captured...)
}

// DropCaptured forgets one captured photo
func (d *Draft) DropCaptured(i int) error {
	d.Lock()
	defer d.Unlock()
	if i < 0 || i >= len(d.captured) {
		return ErrPhotoNotFound
	}
	d.captured = append(d.captured[:i], d.captured[i+1:]...)
	return nil
}

// AttachDictation takes the draft's only dictation slot. Call release
// once the socket is gone.
func (d *Draft) AttachDictation() (release func(), err error) {
	return d.speech.Attach()
}

func (d *Draft) close() {
	d.camera.Close()
}

// Drafts keeps the open drafts of every session
type Drafts struct {
	sync.Mutex
	drafts map[string]*Draft
	owners map[string]string
	camera capture.Camera
	now    func() time.Time
}

func NewDrafts(camera capture.Camera) *Drafts {
	return &Drafts{
		drafts: map[string]*Draft{},
		owners: map[string]string{},
		camera: camera,
		now:    time.Now,
	}
}

// Open starts a draft for the address on behalf of a session
func (r *Drafts) Open(sessionID, address string) *Draft {
	r.Lock()
	defer r.Unlock()

	d := newDraft(uuid.New().String(), NewForm(address, r.now()), r.camera)
	r.drafts[d.ID] = d
	r.owners[d.ID] = sessionID
	return d
}

// Get returns a draft owned by the session
func (r *Drafts) Get(sessionID, id string) (*Draft, error) {
	r.Lock()
	defer r.Unlock()

	d, ok := r.drafts[id]
	if !ok || r.owners[id] != sessionID {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

// Discard closes and forgets a draft
func (r *Drafts) Discard(id string) {
	r.Lock()
	d, ok := r.drafts[id]
	delete(r.drafts, id)
	delete(r.owners, id)
	r.Unlock()

	if ok {
		d.close()
	}
}

// Len returns the number of open drafts
func (r *Drafts) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.drafts)
}

// DropSession discards every draft of a session
func (r *Drafts) DropSession(sessionID string) {
	r.Lock()
	var ids []string
	for id, owner := range r.owners {
		if owner == sessionID {
			ids = append(ids, id)
		}
	}
	r.Unlock()

	for _, id := range ids {
		r.Discard(id)
	}
}
