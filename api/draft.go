package api

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stl-inc/as-report-api/capture"
	"github.com/stl-inc/as-report-api/dictation"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
)

const maxFrameBytes = 8 << 20

type captureView struct {
	Index      int       `json:"index"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	DataURL    string    `json:"data_url"`
}

func newCaptureView(i int, p capture.Photo) captureView {
	return captureView{
		Index:      i,
		Width:      p.Width,
		Height:     p.Height,
		CapturedAt: p.CapturedAt,
		DataURL:    p.DataURL(),
	}
}

func captureViews(photos []capture.Photo) []captureView {
	views := make([]captureView, 0, len(photos))
	for i, p := range photos {
		views = append(views, newCaptureView(i, p))
	}
	return views
}

func draftView(d *report.Draft) gin.H {
	form := d.Form()
	return gin.H{
		"id":          d.ID,
		"form":        form,
		"attachments": form.AttachmentNames(),
		"captures":    captureViews(d.Captured()),
		"camera_open": d.Camera().IsOpen(),
	}
}

// draftOf loads the draft named in the path for the current session
func (s *Server) draftOf(c *gin.Context) (*report.Draft, bool) {
	d, err := s.drafts.Get(sessionOf(c).ID, c.Param("id"))
	if shouldInterupt(err, c) {
		return nil, false
	}
	return d, true
}

func (s *Server) openDraft(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	d := s.drafts.Open(sessionOf(c).ID, req.Address)
	c.JSON(http.StatusCreated, draftView(d))
}

func (s *Server) getDraft(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, draftView(d))
}

// updateDraft sets the given fields, e.g. {"writer": "..."}
func (s *Server) updateDraft(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if shouldInterupt(d.Set(k, fields[k]), c) {
			return
		}
	}
	c.JSON(http.StatusOK, draftView(d))
}

func (s *Server) discardDraft(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}
	s.drafts.Discard(d.ID)
	c.JSON(http.StatusOK, gin.H{"result": "OK"})
}

func (s *Server) attachDraftPhotos(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	bucket, err := schema.ParseBucket(c.Param("bucket"))
	if shouldInterupt(err, c) {
		return
	}

	files, err := readAttachments(c)
	if err != nil {
		abortUpload(c, err)
		return
	}

	if shouldInterupt(d.Attach(bucket, files...), c) {
		return
	}
	c.JSON(http.StatusOK, draftView(d))
}

// submitDraft uploads the photos and creates the report. A failed submission
// keeps the draft so that it can be sent again.
func (s *Server) submitDraft(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	created, err := s.reports.Submit(c, d)
	if err != nil {
		code, resp := errorStatus(err)
		if code == http.StatusInternalServerError {
			log.WithField("draft", d.ID).Errorf("submit report: %s", err)
			resp = errorSubmitFailed
		}
		abortWithEncoding(c, code, resp, err)
		return
	}

	s.browser.Created(*created)
	c.JSON(http.StatusCreated, gin.H{
		"report":  created,
		"message": translate(c, "report.submitted", report.SubmitSucceeded),
	})
}

func (s *Server) openCamera(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	facing := capture.Facing(c.DefaultQuery("facing", string(capture.FacingEnvironment)))
	if facing != capture.FacingEnvironment && facing != capture.FacingUser {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	if shouldInterupt(d.Camera().Open(c, facing), c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera_open": true, "facing": facing})
}

func (s *Server) closeCamera(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}
	d.Camera().Close()
	c.JSON(http.StatusOK, gin.H{"camera_open": false})
}

// pushFrame replaces the current frame of a client driven camera
func (s *Server) pushFrame(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	stream, err := d.Camera().Stream()
	if shouldInterupt(err, c) {
		return
	}
	pushed, ok := stream.(*capture.PushStream)
	if !ok {
		abortWithEncoding(c, http.StatusConflict, errorInvalidState)
		return
	}

	img, _, err := image.Decode(http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes))
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	if shouldInterupt(pushed.Push(img), c) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) capturePhoto(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	p, i, err := d.Capture()
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusCreated, newCaptureView(i, p))
}

func (s *Server) listCaptures(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"captures": captureViews(d.Captured())})
}

func (s *Server) dropCapture(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	if shouldInterupt(d.DropCaptured(index), c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"captures": captureViews(d.Captured())})
}

// dictate upgrades to the dictation socket of a draft
func (s *Server) dictate(c *gin.Context) {
	d, ok := s.draftOf(c)
	if !ok {
		return
	}

	release, err := d.AttachDictation()
	if shouldInterupt(err, c) {
		return
	}
	defer release()

	conn, err := dictation.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered
		c.Error(err)
		return
	}

	dictation.Serve(c.Request.Context(), conn, d)
}
