package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stl-inc/as-report-api/browse"
	"github.com/stl-inc/as-report-api/pdf"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
)

// listReports returns the reports matching ?field=&q=. refresh=true reloads
// the list from the store first.
func (s *Server) listReports(c *gin.Context) {
	field, err := browse.ParseField(c.Query("field"))
	if shouldInterupt(err, c) {
		return
	}

	if c.Query("refresh") == "true" {
		if _, err := s.browser.Refetch(c); shouldInterupt(err, c) {
			return
		}
	}

	reports, err := s.browser.Search(c, field, c.Query("q"))
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// getReport returns a report with its form, read only unless ?mode=edit
func (s *Server) getReport(c *gin.Context) {
	mode := report.ModeView
	switch c.DefaultQuery("mode", "view") {
	case "view":
	case "edit":
		mode = report.ModeEdit
	default:
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	r, err := s.browser.Get(c, c.Param("id"))
	if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report": r,
		"form":   report.FormOf(*r, mode, s.browser.Options()),
	})
}

// saveReport applies the given fields to the edit form and stores what changed
func (s *Server) saveReport(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorCannotParseRequest, err)
		return
	}

	id := c.Param("id")
	form, err := s.browser.Form(c, id, report.ModeEdit)
	if shouldInterupt(err, c) {
		return
	}

	for k, v := range fields {
		if shouldInterupt(form.Set(k, v), c) {
			return
		}
	}

	result, err := s.browser.Save(c, id, form)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"message": translate(c, "report.saved", "The report was updated."),
	})
}

func (s *Server) deleteReport(c *gin.Context) {
	result, err := s.browser.Delete(c, c.Param("id"), c.Query("confirm") == "true")
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"message": translate(c, "report.deleted", "The report was deleted."),
	})
}

func (s *Server) appendReportPhotos(c *gin.Context) {
	bucket, err := schema.ParseBucket(c.Param("bucket"))
	if shouldInterupt(err, c) {
		return
	}

	files, err := readAttachments(c)
	if err != nil {
		abortUpload(c, err)
		return
	}

	result, err := s.browser.AppendPhotos(c, c.Param("id"), bucket, files)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// deleteReportPhoto removes the photo given by ?url= from a bucket
func (s *Server) deleteReportPhoto(c *gin.Context) {
	bucket, err := schema.ParseBucket(c.Param("bucket"))
	if shouldInterupt(err, c) {
		return
	}

	url := c.Query("url")
	if url == "" {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters)
		return
	}

	result, err := s.browser.DeletePhoto(c, c.Param("id"), bucket, url)
	if shouldInterupt(err, c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) reportPDF(c *gin.Context) {
	r, err := s.browser.Get(c, c.Param("id"))
	if shouldInterupt(err, c) {
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(c, r, &buf); shouldInterupt(err, c) {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.FileName(r)))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
