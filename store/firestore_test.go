package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stl-inc/as-report-api/schema"
)

func TestFirestoreReportDate(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)

	cases := []struct {
		name   string
		stored interface{}
		want   string
	}{
		{"string", "2024-05-02T00:30:00.000Z", "2024-05-02T00:30:00.000Z"},
		{"timestamp", time.Date(2024, 5, 2, 9, 30, 0, 0, kst), "2024-05-02T00:30:00.000Z"},
		{"missing", nil, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fr := firestoreReport{
				Report:     schema.Report{Writer: "김철수"},
				ReportDate: c.stored,
			}
			r, err := fr.report()
			require.NoError(t, err)
			assert.Equal(t, c.want, r.ReportDate)
			assert.Equal(t, "김철수", r.Writer)
			assert.NotNil(t, r.Photos.FieldPhotoURLs)
		})
	}

	_, err := firestoreReport{ReportDate: int64(20240502)}.report()
	assert.Error(t, err)
}
