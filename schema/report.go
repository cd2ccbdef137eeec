package schema

import (
	"fmt"
	"time"
)

const (
	ReportCollection = "reports"

	// ReportDateLayout is the canonical form of a report date, matching a JavaScript
	// Date.toISOString value.
	ReportDateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Bucket names one of the three photo groups of a report
type Bucket string

const (
	BucketField    Bucket = "field"
	BucketMaterial Bucket = "material"
	BucketReason   Bucket = "reason"
)

// Buckets lists every bucket in upload order
var Buckets = []Bucket{BucketField, BucketMaterial, BucketReason}

var ErrUnknownBucket = fmt.Errorf("unknown photo bucket")

// ParseBucket accepts either the short bucket name or its document key
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if s == string(b) || s == b.Key() {
			return b, nil
		}
	}
	return "", ErrUnknownBucket
}

// Folder is the storage folder that holds the bucket's photos.
func (b Bucket) Folder() string {
	return string(b) + "Photos"
}

// Key is the field name of the bucket inside the photos map.
func (b Bucket) Key() string {
	return string(b) + "PhotoURLs"
}

// Path is the document path of the bucket, usable for field-level updates.
func (b Bucket) Path() string {
	return "photos." + b.Key()
}

// Photos holds the uploaded photo URLs of a report grouped by bucket
type Photos struct {
	FieldPhotoURLs    []string `json:"fieldPhotoURLs" bson:"fieldPhotoURLs" firestore:"fieldPhotoURLs"`
	MaterialPhotoURLs []string `json:"materialPhotoURLs" bson:"materialPhotoURLs" firestore:"materialPhotoURLs"`
	ReasonPhotoURLs   []string `json:"reasonPhotoURLs" bson:"reasonPhotoURLs" firestore:"reasonPhotoURLs"`
}

// Get returns the URLs of a bucket. The result is never nil.
func (p Photos) Get(b Bucket) []string {
	var urls []string
	switch b {
	case BucketField:
		urls = p.FieldPhotoURLs
	case BucketMaterial:
		urls = p.MaterialPhotoURLs
	case BucketReason:
		urls = p.ReasonPhotoURLs
	}
	if urls == nil {
		return []string{}
	}
	return urls
}

// Set replaces the URLs of a bucket
func (p *Photos) Set(b Bucket, urls []string) {
	if urls == nil {
		urls = []string{}
	}
	switch b {
	case BucketField:
		p.FieldPhotoURLs = urls
	case BucketMaterial:
		p.MaterialPhotoURLs = urls
	case BucketReason:
		p.ReasonPhotoURLs = urls
	}
}

// Normalize replaces nil buckets with empty lists so they persist as [].
func (p *Photos) Normalize() {
	for _, b := range Buckets {
		p.Set(b, p.Get(b))
	}
}

// Report is an AS malfunction report
type Report struct {
	ID                 string    `json:"id" bson:"_id" firestore:"-"`
	Address            string    `json:"address" bson:"address" firestore:"address"`
	DetailedAddress    string    `json:"detailedAddress" bson:"detailedAddress" firestore:"detailedAddress"`
	Writer             string    `json:"writer" bson:"writer" firestore:"writer"`
	ReportDate         string    `json:"reportDate" bson:"reportDate" firestore:"reportDate"`
	Company            string    `json:"company" bson:"company" firestore:"company"`
	MalfunctionDetails string    `json:"malfunctionDetails" bson:"malfunctionDetails" firestore:"malfunctionDetails"`
	ActionDetails      string    `json:"actionDetails" bson:"actionDetails" firestore:"actionDetails"`
	MalfunctionReason  string    `json:"malfunctionReason" bson:"malfunctionReason" firestore:"malfunctionReason"`
	RecycleCategory    string    `json:"recycleCategory" bson:"recycleCategory" firestore:"recycleCategory"`
	Manufacturer       string    `json:"manufacturer" bson:"manufacturer" firestore:"manufacturer"`
	PhoneNumber        string    `json:"phoneNumber" bson:"phoneNumber" firestore:"phoneNumber"`
	Photos             Photos    `json:"photos" bson:"photos" firestore:"photos"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
}

// FullAddress joins the address and the detailed address the way reports are searched.
func (r Report) FullAddress() string {
	return r.Address + " " + r.DetailedAddress
}

// TextFields returns the editable text fields keyed by their document path
func (r Report) TextFields() map[string]string {
	return map[string]string{
		"address":            r.Address,
		"detailedAddress":    r.DetailedAddress,
		"writer":             r.Writer,
		"reportDate":         r.ReportDate,
		"company":            r.Company,
		"malfunctionDetails": r.MalfunctionDetails,
		"actionDetails":      r.ActionDetails,
		"malfunctionReason":  r.MalfunctionReason,
		"recycleCategory":    r.RecycleCategory,
		"manufacturer":       r.Manufacturer,
		"phoneNumber":        r.PhoneNumber,
	}
}

// FormatReportDate normalizes a report date to its canonical string
func FormatReportDate(t time.Time) string {
	return t.UTC().Format(ReportDateLayout)
}

// ParseReportDate reads a canonical report date. Dates written as plain RFC 3339
// or as a bare day are accepted too.
func ParseReportDate(s string) (time.Time, error) {
	for _, layout := range []string{ReportDateLayout, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid report date %q", s)
}
