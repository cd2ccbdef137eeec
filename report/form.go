package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/stl-inc/as-report-api/schema"
)

const (
	// Other unlocks the free-text value of a choice
	Other = "기타"
	// OtherAlias is accepted for Other
	OtherAlias = "other"

	DefaultPhoneNumber = "010 7421 1684"

	// NoAddress is used when the editor is opened without an address
	NoAddress = "주소 정보 없음"
)

var (
	ErrReadOnly     = fmt.Errorf("form is read only")
	ErrUnknownField = fmt.Errorf("unknown field")
	ErrWrongMode    = fmt.Errorf("operation is not available in this mode")
)

// Mode of a form
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
	ModeView
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	case ModeView:
		return "view"
	}
	return "unknown"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Options are the enumerated values offered for the choice fields
type Options struct {
	PhoneNumbers  []string `json:"phone_numbers"`
	Manufacturers []string `json:"manufacturers"`
}

func DefaultOptions() Options {
	return Options{
		PhoneNumbers:  []string{DefaultPhoneNumber, "없음", Other},
		Manufacturers: []string{"에스티엘", Other},
	}
}

func isOther(s string) bool {
	return s == Other || strings.EqualFold(s, OtherAlias)
}

// Choice is an enumerated value with a free-text override
type Choice struct {
	Selected string `json:"selected"`
	Custom   string `json:"custom"`
}

// Resolve returns the custom value when Other is selected, the selected
// value otherwise
func (c Choice) Resolve() string {
	if isOther(c.Selected) {
		return c.Custom
	}
	return c.Selected
}

// ChoiceOf rebuilds a choice from a stored value
func ChoiceOf(value string, options []string) Choice {
	if value == "" {
		return Choice{}
	}
	for _, o := range options {
		if o == value && !isOther(o) {
			return Choice{Selected: value}
		}
	}
	return Choice{Selected: Other, Custom: value}
}

// Attachment is a file chosen for upload
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// DictatedFields are the fields that accept voice input
var DictatedFields = []string{
	"detailedAddress",
	"company",
	"recycleCategory",
	"malfunctionDetails",
	"actionDetails",
	"malfunctionReason",
}

func IsDictated(field string) bool {
	for _, f := range DictatedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Form is the field set of a report. The same form serves creation, editing
// and read-only viewing.
type Form struct {
	Mode               Mode      `json:"mode"`
	Address            string    `json:"address"`
	DetailedAddress    string    `json:"detailedAddress"`
	Writer             string    `json:"writer"`
	ReportDate         time.Time `json:"reportDate"`
	Company            string    `json:"company"`
	MalfunctionDetails string    `json:"malfunctionDetails"`
	ActionDetails      string    `json:"actionDetails"`
	MalfunctionReason  string    `json:"malfunctionReason"`
	RecycleCategory    string    `json:"recycleCategory"`
	Manufacturer       Choice    `json:"manufacturer"`
	PhoneNumber        Choice    `json:"phoneNumber"`

	Attachments map[schema.Bucket][]Attachment `json:"-"`
}

// NewForm returns an empty creation form for the address
func NewForm(address string, now time.Time) Form {
	if strings.TrimSpace(address) == "" {
		address = NoAddress
	}
	return Form{
		Mode:        ModeCreate,
		Address:     address,
		ReportDate:  now,
		PhoneNumber: Choice{Selected: DefaultPhoneNumber},
		Attachments: map[schema.Bucket][]Attachment{},
	}
}

// FormOf loads a stored report into a form
func FormOf(r schema.Report, mode Mode, options Options) Form {
	date, err := schema.ParseReportDate(r.ReportDate)
	if err != nil {
		date = time.Time{}
	}
	return Form{
		Mode:               mode,
		Address:            r.Address,
		DetailedAddress:    r.DetailedAddress,
		Writer:             r.Writer,
		ReportDate:         date,
		Company:            r.Company,
		MalfunctionDetails: r.MalfunctionDetails,
		ActionDetails:      r.ActionDetails,
		MalfunctionReason:  r.MalfunctionReason,
		RecycleCategory:    r.RecycleCategory,
		Manufacturer:       ChoiceOf(r.Manufacturer, options.Manufacturers),
		PhoneNumber:        ChoiceOf(r.PhoneNumber, options.PhoneNumbers),
		Attachments:        map[schema.Bucket][]Attachment{},
	}
}

func (f *Form) text(field string) (*string, bool) {
	switch field {
	case "address":
		return &f.Address, true
	case "detailedAddress":
		return &f.DetailedAddress, true
	case "writer":
		return &f.Writer, true
	case "company":
		return &f.Company, true
	case "malfunctionDetails":
		return &f.MalfunctionDetails, true
	case "actionDetails":
		return &f.ActionDetails, true
	case "malfunctionReason":
		return &f.MalfunctionReason, true
	case "recycleCategory":
		return &f.RecycleCategory, true
	case "manufacturer":
		return &f.Manufacturer.Selected, true
	case "customManufacturer":
		return &f.Manufacturer.Custom, true
	case "phoneNumber":
		return &f.PhoneNumber.Selected, true
	case "customPhoneNumber":
		return &f.PhoneNumber.Custom, true
	}
	return nil, false
}

// Get returns the raw value of an input
func (f *Form) Get(field string) (string, error) {
	if field == "reportDate" {
		return schema.FormatReportDate(f.ReportDate), nil
	}
	p, ok := f.text(field)
	if !ok {
		return "", ErrUnknownField
	}
	return *p, nil
}

// Set writes an input. Choice fields keep the raw selection; resolution
// happens when the form is turned into a report.
func (f *Form) Set(field, value string) error {
	if f.Mode == ModeView {
		return ErrReadOnly
	}

	if field == "reportDate" {
		t, err := schema.ParseReportDate(value)
		if err != nil {
			return err
		}
		f.ReportDate = t
		return nil
	}

	p, ok := f.text(field)
	if !ok {
		return ErrUnknownField
	}
	*p = value
	return nil
}

// Attach adds files to a bucket
func (f *Form) Attach(bucket schema.Bucket, files ...Attachment) error {
	if f.Mode == ModeView {
		return ErrReadOnly
	}
	if f.Attachments == nil {
		f.Attachments = map[schema.Bucket][]Attachment{}
	}
	f.Attachments[bucket] = append(f.Attachments[bucket], files...)
	return nil
}

// AttachmentNames lists the file names waiting for upload per bucket
func (f Form) AttachmentNames() map[schema.Bucket][]string {
	names := map[schema.Bucket][]string{}
	for _, b := range schema.Buckets {
		names[b] = []string{}
		for _, a := range f.Attachments[b] {
			names[b] = append(names[b], a.Name)
		}
	}
	return names
}

// Report turns the form into report fields with choices resolved. Photos, id
// and creation time are left to the caller.
func (f Form) Report() schema.Report {
	return schema.Report{
		Address:            f.Address,
		DetailedAddress:    f.DetailedAddress,
		Writer:             f.Writer,
		ReportDate:         schema.FormatReportDate(f.ReportDate),
		Company:            f.Company,
		MalfunctionDetails: f.MalfunctionDetails,
		ActionDetails:      f.ActionDetails,
		MalfunctionReason:  f.MalfunctionReason,
		RecycleCategory:    f.RecycleCategory,
		Manufacturer:       f.Manufacturer.Resolve(),
		PhoneNumber:        f.PhoneNumber.Resolve(),
	}
}

// Clone copies the form so callers cannot touch the attachment lists
func (f Form) Clone() Form {
	c := f
	c.Attachments = make(map[schema.Bucket][]Attachment, len(f.Attachments))
	for b, files := range f.Attachments {
		c.Attachments[b] = append([]Attachment(nil), files...)
	}
	return c
}
