package report

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

const (
	SubmitSucceeded = "AS 보고서가 성공적으로 제출되었습니다!"
	SubmitFailed    = "Error: 보고서를 제출하는 중 문제가 발생했습니다."
)

// Service submits drafts
type Service struct {
	reports  store.Reports
	uploader *Uploader
	drafts   *Drafts
	now      func() time.Time

	// MergeCaptured adds camera captures to the field photos on submit
	MergeCaptured bool
}

func NewService(reports store.Reports, blob store.Blob, drafts *Drafts) *Service {
	return &Service{
		reports:  reports,
		uploader: NewUploader(blob),
		drafts:   drafts,
		now:      time.Now,
	}
}

func (s *Service) Uploader() *Uploader {
	return s.uploader
}

// Create uploads the attachments of a creation form and stores the report
func (s *Service) Create(ctx context.Context, f Form) (*schema.Report, error) {
	if f.Mode != ModeCreate {
		return nil, ErrWrongMode
	}

	photos, err := s.uploader.Upload(ctx, f.Attachments)
	if err != nil {
		log.WithField("prefix", logPrefix).Errorf("upload photos: %s", err)
		return nil, err
	}

	r := f.Report()
	r.Photos = photos
	r.CreatedAt = s.now()

	id, err := s.reports.CreateReport(ctx, &r)
	if err != nil {
		log.WithField("prefix", logPrefix).Errorf("create report: %s", err)
		s.uploader.discard([][]string{photos.FieldPhotoURLs, photos.MaterialPhotoURLs, photos.ReasonPhotoURLs})
		return nil, err
	}
	r.ID = id
	return &r, nil
}

// Submit creates the report of a draft. The draft is discarded on success
// and left untouched on failure so the user can retry.
func (s *Service) Submit(ctx context.Context, d *Draft) (*schema.Report, error) {
	f := d.Form()
	if s.MergeCaptured {
		for i, p := range d.Captured() {
			f.Attachments[schema.BucketField] = append(f.Attachments[schema.BucketField], Attachment{
				Name:        fmt.Sprintf("capture-%d.png", i+1),
				ContentType: "image/png",
				Data:        p.PNG,
			})
		}
	}

	r, err := s.Create(ctx, f)
	if err != nil {
		return nil, err
	}

	if s.drafts != nil {
		s.drafts.Discard(d.ID)
	}
	return r, nil
}
