package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stl-inc/as-report-api/dictation"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
)

type draftResponse struct {
	ID   string `json:"id"`
	Form struct {
		Mode            string        `json:"mode"`
		Address         string        `json:"address"`
		Writer          string        `json:"writer"`
		Company         string        `json:"company"`
		PhoneNumber     report.Choice `json:"phoneNumber"`
		DetailedAddress string        `json:"detailedAddress"`
	} `json:"form"`
	Attachments map[string][]string `json:"attachments"`
	Captures    []captureView       `json:"captures"`
	CameraOpen  bool                `json:"camera_open"`
}

func pngOf(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartFiles builds an upload body with one part per file
func multipartFiles(t *testing.T, files map[string][]byte) (io.Reader, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, name))
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestDraftAttachRejectsLargeFile(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	limit := maxUploadBytes
	maxUploadBytes = 64
	defer func() { maxUploadBytes = limit }()

	d := f.openDraft(t, token, "")

	body, contentType := multipartFiles(t, map[string][]byte{"big.png": bytes.Repeat([]byte{1}, 65)})
	w := f.do("POST", "/api/drafts/"+d.ID+"/photos/field", token, body, contentType)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, int64(1010), errorOf(t, w).Code)

	w = f.do("GET", "/api/drafts/"+d.ID, token, nil, "")
	decode(t, w, &d)
	assert.Empty(t, d.Attachments["field"])

	body, contentType = multipartFiles(t, map[string][]byte{"fits.png": bytes.Repeat([]byte{1}, 64)})
	w = f.do("POST", "/api/drafts/"+d.ID+"/photos/field", token, body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &d)
	assert.Equal(t, []string{"fits.png"}, d.Attachments["field"])
}

func (f *fixture) openDraft(t *testing.T, token string, address string) draftResponse {
	w := f.doJSON(t, "POST", "/api/drafts", token, gin.H{"address": address})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d draftResponse
	decode(t, w, &d)
	return d
}

func TestDraftSubmit(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	d := f.openDraft(t, token, "")
	assert.Equal(t, "create", d.Form.Mode)
	assert.Equal(t, report.NoAddress, d.Form.Address)
	assert.Equal(t, report.DefaultPhoneNumber, d.Form.PhoneNumber.Selected)

	w := f.doJSON(t, "PATCH", "/api/drafts/"+d.ID, token, gin.H{"writer": "김철수", "company": "서울시청"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &d)
	assert.Equal(t, "김철수", d.Form.Writer)
	assert.Equal(t, "서울시청", d.Form.Company)

	w = f.doJSON(t, "PATCH", "/api/drafts/"+d.ID, token, gin.H{"mode": "view"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(1010), errorOf(t, w).Code)

	body, contentType := multipartFiles(t, map[string][]byte{"a.png": pngOf(t, 4, 4)})
	w = f.do("POST", "/api/drafts/"+d.ID+"/photos/field", token, body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &d)
	assert.Equal(t, []string{"a.png"}, d.Attachments["field"])
	assert.Equal(t, []string{}, d.Attachments["reason"])

	f.blob.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), "image/png").
		DoAndReturn(func(_ context.Context, path string, r io.Reader, _ string) (string, error) {
			assert.True(t, strings.HasPrefix(path, "fieldPhotos/"))
			assert.True(t, strings.HasSuffix(path, "-a.png"))
			data, err := ioutil.ReadAll(r)
			assert.NoError(t, err)
			assert.NotEmpty(t, data)
			return "https://cdn.example.com/" + path, nil
		}).Times(1)
	f.store.EXPECT().CreateReport(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r *schema.Report) (string, error) {
			assert.Equal(t, "김철수", r.Writer)
			assert.Equal(t, report.DefaultPhoneNumber, r.PhoneNumber)
			assert.Len(t, r.Photos.FieldPhotoURLs, 1)
			assert.Equal(t, []string{}, r.Photos.ReasonPhotoURLs)
			assert.False(t, r.CreatedAt.IsZero())
			return "r1", nil
		}).Times(1)

	w = f.do("POST", "/api/drafts/"+d.ID+"/submit", token, nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted struct {
		Report  schema.Report `json:"report"`
		Message string        `json:"message"`
	}
	decode(t, w, &submitted)
	assert.Equal(t, "r1", submitted.Report.ID)
	assert.Equal(t, report.SubmitSucceeded, submitted.Message)

	w = f.do("GET", "/api/drafts/"+d.ID, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(1303), errorOf(t, w).Code)
}

func TestDraftSubmitFailureKeepsDraft(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	d := f.openDraft(t, token, "서울 중구 세종대로 110")
	body, contentType := multipartFiles(t, map[string][]byte{"a.png": pngOf(t, 2, 2)})
	require.Equal(t, http.StatusOK, f.do("POST", "/api/drafts/"+d.ID+"/photos/reason", token, body, contentType).Code)

	f.blob.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", fmt.Errorf("storage down")).Times(1)

	w := f.do("POST", "/api/drafts/"+d.ID+"/submit", token, nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int64(1500), errorOf(t, w).Code)

	w = f.do("GET", "/api/drafts/"+d.ID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &d)
	assert.Equal(t, "서울 중구 세종대로 110", d.Form.Address)
	assert.Equal(t, []string{"a.png"}, d.Attachments["reason"])
}

func TestDraftsAreScopedToSession(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	owner := f.signIn(t)
	other := f.signIn(t)

	d := f.openDraft(t, owner, "부산")

	w := f.do("GET", "/api/drafts/"+d.ID, other, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("DELETE", "/api/drafts/"+d.ID, other, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("DELETE", "/api/drafts/"+d.ID, owner, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.server.drafts.Len())

	w = f.do("POST", "/api/drafts/"+d.ID+"/photos/unknown", owner, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftCamera(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	d := f.openDraft(t, token, "")
	base := "/api/drafts/" + d.ID

	w := f.do("POST", base+"/camera/capture", token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code, "camera is not open")

	require.Equal(t, http.StatusOK, f.do("POST", base+"/camera", token, nil, "").Code)

	w = f.do("POST", base+"/camera", token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(1401), errorOf(t, w).Code)

	w = f.do("POST", base+"/camera/capture", token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code, "no frame yet")
	assert.Equal(t, int64(1450), errorOf(t, w).Code)

	w = f.do("PUT", base+"/camera/frame", token, bytes.NewReader(pngOf(t, 8, 6)), "image/png")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do("POST", base+"/camera/capture", token, nil, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var captured captureView
	decode(t, w, &captured)
	assert.Equal(t, 0, captured.Index)
	assert.Equal(t, 8, captured.Width)
	assert.Equal(t, 6, captured.Height)
	assert.True(t, strings.HasPrefix(captured.DataURL, "data:image/png;base64,"))

	// capturing closes the camera
	w = f.do("GET", base, token, nil, "")
	decode(t, w, &d)
	assert.False(t, d.CameraOpen)
	require.Len(t, d.Captures, 1)

	w = f.do("PUT", base+"/camera/frame", token, bytes.NewReader(pngOf(t, 8, 6)), "image/png")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do("DELETE", base+"/captures/3", token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do("DELETE", base+"/captures/0", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do("GET", base+"/captures", token, nil, "")
	var list struct {
		Captures []captureView `json:"captures"`
	}
	decode(t, w, &list)
	assert.Empty(t, list.Captures)

	w = f.do("POST", base+"/camera?facing=sideways", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftDictation(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	d := f.openDraft(t, token, "")

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/drafts/" + d.ID + "/dictation?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() dictation.Frame {
		var fr dictation.Frame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&fr))
		return fr
	}

	require.NoError(t, conn.WriteJSON(dictation.Frame{Type: dictation.FrameHello, Supported: true}))
	require.NoError(t, conn.WriteJSON(dictation.Frame{Type: dictation.FrameStart, Field: "company"}))
	assert.Equal(t, "start", read().Action)

	require.NoError(t, conn.WriteJSON(dictation.Frame{Type: dictation.FrameTranscript, Field: "company", Text: "서울시청"}))
	assert.Equal(t, dictation.Frame{Type: dictation.FrameValue, Field: "company", Value: "서울시청"}, read())

	// writer is typed, not dictated
	require.NoError(t, conn.WriteJSON(dictation.Frame{Type: dictation.FrameStart, Field: "writer"}))
	fr := read()
	for fr.Type != dictation.FrameError {
		fr = read()
	}
	assert.Equal(t, report.ErrNotDictated.Error(), fr.Message)

	w := f.do("GET", "/api/drafts/"+d.ID, token, nil, "")
	decode(t, w, &d)
	assert.Equal(t, "서울시청", d.Form.Company)

	// the socket needs a token too
	_, resp, err := websocket.DefaultDialer.Dial(strings.Split(url, "?")[0], nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDraftDictationOneSocket(t *testing.T) {
	f := newFixture(t)
	defer f.finish()
	token := f.signIn(t)

	d := f.openDraft(t, token, "")

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/drafts/" + d.ID + "/dictation?access_token=" + token
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, first.WriteJSON(dictation.Frame{Type: dictation.FrameHello, Supported: true}))
	require.NoError(t, first.WriteJSON(dictation.Frame{Type: dictation.FrameStart, Field: "company"}))
	var fr dictation.Frame
	require.NoError(t, first.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, first.ReadJSON(&fr))
	assert.Equal(t, "start", fr.Action)

	// a second window cannot take the recognizer for another field
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, int64(1404), e.Code)

	// the slot is free again once the first socket is gone
	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)
}
