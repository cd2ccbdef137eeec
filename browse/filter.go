package browse

import (
	"fmt"
	"strings"

	"github.com/stl-inc/as-report-api/schema"
)

var ErrUnknownFilter = fmt.Errorf("unknown filter field")

// Field is the report attribute a search runs against
type Field string

const (
	FieldAddress         Field = "address"
	FieldReportDate      Field = "reportDate"
	FieldRecycleCategory Field = "recycleCategory"
)

func ParseField(s string) (Field, error) {
	switch Field(s) {
	case "":
		return FieldAddress, nil
	case FieldAddress, FieldReportDate, FieldRecycleCategory:
		return Field(s), nil
	}
	return "", ErrUnknownFilter
}

func (f Field) value(r schema.Report) string {
	switch f {
	case FieldReportDate:
		return r.ReportDate
	case FieldRecycleCategory:
		return r.RecycleCategory
	}
	return r.FullAddress()
}

// Filter keeps the reports whose field contains the query, ignoring case.
// An empty query keeps everything.
func Filter(reports []schema.Report, field Field, query string) []schema.Report {
	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]schema.Report, 0, len(reports))
	for _, r := range reports {
		if q == "" || strings.Contains(strings.ToLower(field.value(r)), q) {
			result = append(result, r)
		}
	}
	return result
}
