package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

const logPrefix = "browse"

var (
	ErrNotConfirmed  = fmt.Errorf("deletion is not confirmed")
	ErrPhotoNotFound = fmt.Errorf("photo not found in bucket")
	ErrNoFiles       = fmt.Errorf("no files to upload")
)

// Kind of a mutation
type Kind int

const (
	Unchanged Kind = iota
	Updated
	Deleted
	PhotosAppended
	PhotoDeleted
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case PhotosAppended:
		return "photos_appended"
	case PhotoDeleted:
		return "photo_deleted"
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MutationResult is the outcome of a write. Report is the document as stored
// after the write, nil for deletions.
type MutationResult struct {
	Kind   Kind           `json:"kind"`
	ID     string         `json:"id"`
	Fields []string       `json:"fields,omitempty"`
	Report *schema.Report `json:"report,omitempty"`
}

// Repository is the cached view of the report collection. Reads are served
// from the cache once it is filled; every write goes to the store first and
// then replaces the cached copy with the stored document.
type Repository struct {
	reports  store.Reports
	blob     store.Blob
	uploader *report.Uploader
	options  report.Options

	// serializes read-modify-write of photo buckets
	writeLock sync.Mutex

	cacheLock sync.RWMutex
	cache     []schema.Report
	loaded    bool
}

func NewRepository(reports store.Reports, blob store.Blob, uploader *report.Uploader, options report.Options) *Repository {
	return &Repository{
		reports:  reports,
		blob:     blob,
		uploader: uploader,
		options:  options,
	}
}

func (r *Repository) Options() report.Options {
	return r.options
}

// List returns every report, newest first
func (r *Repository) List(ctx context.Context) ([]schema.Report, error) {
	r.cacheLock.RLock()
	if r.loaded {
		list := append([]schema.Report(nil), r.cache...)
		r.cacheLock.RUnlock()
		return list, nil
	}
	r.cacheLock.RUnlock()

	return r.Refetch(ctx)
}

// Search lists the reports whose field contains the query
func (r *Repository) Search(ctx context.Context, field Field, query string) ([]schema.Report, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(list, field, query), nil
}

// Invalidate drops the cache; the next List reads the store
func (r *Repository) Invalidate() {
	r.cacheLock.Lock()
	defer r.cacheLock.Unlock()
	r.cache = nil
	r.loaded = false
}

// Refetch reloads the whole collection
func (r *Repository) Refetch(ctx context.Context) ([]schema.Report, error) {
	list, err := r.reports.ListReports(ctx)
	if err != nil {
		log.WithField("prefix", logPrefix).Errorf("list reports: %s", err)
		return nil, err
	}

	r.cacheLock.Lock()
	r.cache = list
	r.loaded = true
	r.cacheLock.Unlock()

	return append([]schema.Report(nil), list...), nil
}

// Get reads one report from the store
func (r *Repository) Get(ctx context.Context, id string) (*schema.Report, error) {
	return r.reports.GetReport(ctx, id)
}

// Form loads a report into the shared form in view or edit mode
func (r *Repository) Form(ctx context.Context, id string, mode report.Mode) (report.Form, error) {
	stored, err := r.reports.GetReport(ctx, id)
	if err != nil {
		return report.Form{}, err
	}
	return report.FormOf(*stored, mode, r.options), nil
}

// Created adds a report written elsewhere to the cache
func (r *Repository) Created(rep schema.Report) {
	r.cacheLock.Lock()
	defer r.cacheLock.Unlock()
	if !r.loaded {
		return
	}
	r.cache = append([]schema.Report{rep}, r.cache...)
}

// Save writes the fields of an edit form that differ from the stored report
func (r *Repository) Save(ctx context.Context, id string, edited report.Form) (MutationResult, error) {
	if edited.Mode != report.ModeEdit {
		return MutationResult{}, report.ErrWrongMode
	}

	stored, err := r.reports.GetReport(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}

	before := stored.TextFields()
	after := edited.Report().TextFields()
	if sameReportDate(stored.ReportDate, edited.ReportDate) {
		delete(after, "reportDate")
	}

	changes := map[string]interface{}{}
	var fields []string
	for _, k := range textFieldOrder {
		v, ok := after[k]
		if !ok || v == before[k] {
			continue
		}
		changes[k] = v
		fields = append(fields, k)
	}

	if len(changes) == 0 {
		return MutationResult{Kind: Unchanged, ID: id, Report: stored}, nil
	}

	if err := r.reports.PatchReport(ctx, id, changes); err != nil {
		log.WithField("prefix", logPrefix).Errorf("patch report %s: %s", id, err)
		return MutationResult{}, err
	}

	updated, err := r.sync(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Kind: Updated, ID: id, Fields: fields, Report: updated}, nil
}

// sameReportDate compares the instant, not the spelling, so stored dates in
// another accepted layout are left alone
func sameReportDate(stored string, edited time.Time) bool {
	if edited.IsZero() {
		return true
	}
	t, err := schema.ParseReportDate(stored)
	return err == nil && t.Equal(edited)
}

// Delete removes a report. The caller has to confirm the deletion.
func (r *Repository) Delete(ctx context.Context, id string, confirmed bool) (MutationResult, error) {
	if !confirmed {
		return MutationResult{}, ErrNotConfirmed
	}

	if err := r.reports.DeleteReport(ctx, id); err != nil {
		log.WithField("prefix", logPrefix).Errorf("delete report %s: %s", id, err)
		return MutationResult{}, err
	}

	r.cacheLock.Lock()
	for i, rep := range r.cache {
		if rep.ID == id {
			r.cache = append(r.cache[:i], r.cache[i+1:]...)
			break
		}
	}
	r.cacheLock.Unlock()

	return MutationResult{Kind: Deleted, ID: id}, nil
}

// AppendPhotos uploads files and appends their URLs to the bucket
func (r *Repository) AppendPhotos(ctx context.Context, id string, bucket schema.Bucket, files []report.Attachment) (MutationResult, error) {
	if len(files) == 0 {
		return MutationResult{}, ErrNoFiles
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	stored, err := r.reports.GetReport(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}

	uploaded, err := r.uploader.Upload(ctx, map[schema.Bucket][]report.Attachment{bucket: files})
	if err != nil {
		return MutationResult{}, err
	}

	urls := append(stored.Photos.Get(bucket), uploaded.Get(bucket)...)
	if err := r.reports.PatchReport(ctx, id, map[string]interface{}{bucket.Path(): urls}); err != nil {
		log.WithField("prefix", logPrefix).Errorf("append photos to %s: %s", id, err)
		return MutationResult{}, err
	}

	updated, err := r.sync(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Kind: PhotosAppended, ID: id, Fields: []string{bucket.Path()}, Report: updated}, nil
}

// DeletePhoto removes the blob and the exact URL from the bucket
func (r *Repository) DeletePhoto(ctx context.Context, id string, bucket schema.Bucket, url string) (MutationResult, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	stored, err := r.reports.GetReport(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}

	current := stored.Photos.Get(bucket)
	remaining := make([]string, 0, len(current))
	found := false
	for _, u := range current {
		if u == url {
			found = true
			continue
		}
		remaining = append(remaining, u)
	}
	if !found {
		return MutationResult{}, ErrPhotoNotFound
	}

	if err := r.blob.Delete(ctx, url); err != nil && !errors.Is(err, store.ErrBlobNotFound) {
		log.WithField("prefix", logPrefix).Errorf("delete photo %s: %s", url, err)
		return MutationResult{}, err
	}

	if err := r.reports.PatchReport(ctx, id, map[string]interface{}{bucket.Path(): remaining}); err != nil {
		log.WithField("prefix", logPrefix).Errorf("remove photo from %s: %s", id, err)
		return MutationResult{}, err
	}

	updated, err := r.sync(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Kind: PhotoDeleted, ID: id, Fields: []string{bucket.Path()}, Report: updated}, nil
}

// sync re-reads a written report and replaces its cached copy
func (r *Repository) sync(ctx context.Context, id string) (*schema.Report, error) {
	updated, err := r.reports.GetReport(ctx, id)
	if err != nil {
		r.Invalidate()
		return nil, err
	}

	r.cacheLock.Lock()
	defer r.cacheLock.Unlock()
	for i := range r.cache {
		if r.cache[i].ID == id {
			r.cache[i] = *updated
			break
		}
	}
	return updated, nil
}

var textFieldOrder = []string{
	"address",
	"detailedAddress",
	"writer",
	"reportDate",
	"company",
	"malfunctionDetails",
	"actionDetails",
	"malfunctionReason",
	"recycleCategory",
	"manufacturer",
	"phoneNumber",
}
