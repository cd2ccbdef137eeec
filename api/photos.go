package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stl-inc/as-report-api/report"
)

const uploadField = "files"

// maxUploadBytes bounds a single uploaded file
var maxUploadBytes int64 = 20 << 20

var errFileTooLarge = errors.New("uploaded file is too large")

// contentTyper is implemented by blob stores that remember content types
type contentTyper interface {
	ContentType(ctx context.Context, ref string) (string, error)
}

// readAttachments reads the files of a multipart upload in their form order
func readAttachments(c *gin.Context) ([]report.Attachment, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	headers := form.File[uploadField]
	files := make([]report.Attachment, 0, len(headers))
	for _, h := range headers {
		a, err := readAttachment(h)
		if err != nil {
			return nil, err
		}
		files = append(files, a)
	}
	return files, nil
}

// abortUpload answers a multipart upload that could not be read
func abortUpload(c *gin.Context, err error) {
	if errors.Is(err, errFileTooLarge) {
		abortWithEncoding(c, http.StatusRequestEntityTooLarge, errorInvalidParameters, err)
		return
	}
	abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
}

func readAttachment(h *multipart.FileHeader) (report.Attachment, error) {
	f, err := h.Open()
	if err != nil {
		return report.Attachment{}, err
	}
	defer f.Close()

	data, err := ioutil.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return report.Attachment{}, err
	}
	if int64(len(data)) > maxUploadBytes {
		return report.Attachment{}, fmt.Errorf("%s: %w", h.Filename, errFileTooLarge)
	}

	contentType := h.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return report.Attachment{
		Name:        path.Base(h.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// photo streams a stored photo
func (s *Server) photo(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("path"), "/")

	rc, err := s.blob.Open(c, ref)
	if shouldInterupt(err, c) {
		return
	}
	defer rc.Close()

	r := bufio.NewReader(rc)
	contentType := ""
	if typed, ok := s.blob.(contentTyper); ok {
		if ct, err := typed.ContentType(c, ref); err == nil {
			contentType = ct
		}
	}
	if contentType == "" {
		head, _ := r.Peek(512)
		contentType = http.DetectContentType(head)
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, r, nil)
}
