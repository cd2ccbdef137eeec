package browse

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stl-inc/as-report-api/mocks"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

func storedReport() schema.Report {
	return schema.Report{
		ID:                 "r1",
		Address:            "서울특별시 중구 세종대로 110",
		DetailedAddress:    "2F",
		Writer:             "김철수",
		ReportDate:         "2024-05-02T09:30:00.000Z",
		Company:            "서울시청",
		MalfunctionDetails: "센서 고장",
		RecycleCategory:    "PET",
		Manufacturer:       "ACME",
		PhoneNumber:        report.DefaultPhoneNumber,
		Photos: schema.Photos{
			FieldPhotoURLs:    []string{"u1", "u2"},
			MaterialPhotoURLs: []string{},
			ReasonPhotoURLs:   []string{},
		},
	}
}

func newTestRepository(ctl *gomock.Controller) (*Repository, *mocks.MockStore, *mocks.MockBlob) {
	st := mocks.NewMockStore(ctl)
	blob := mocks.NewMockBlob(ctl)
	return NewRepository(st, blob, report.NewUploader(blob), report.DefaultOptions()), st, blob
}

func TestListIsCachedUntilInvalidated(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	st.EXPECT().ListReports(gomock.Any()).Return([]schema.Report{storedReport()}, nil).Times(2)

	for i := 0; i < 3; i++ {
		list, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}

	repo.Invalidate()
	_, err := repo.List(context.Background())
	assert.NoError(t, err)
}

func TestListFailure(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	st.EXPECT().ListReports(gomock.Any()).Return(nil, fmt.Errorf("network down")).Times(1)
	st.EXPECT().ListReports(gomock.Any()).Return([]schema.Report{}, nil).Times(1)

	_, err := repo.List(context.Background())
	assert.Error(t, err)

	list, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, list)
}

func TestSavePatchesOnlyChangedFields(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	stored := storedReport()

	st.EXPECT().ListReports(gomock.Any()).Return([]schema.Report{stored}, nil).Times(1)
	_, err := repo.List(context.Background())
	require.NoError(t, err)

	updated := stored
	updated.Writer = "이영희"

	gomock.InOrder(
		st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
			r := stored
			return &r, nil
		}),
		st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
			r := stored
			return &r, nil
		}),
		st.EXPECT().PatchReport(gomock.Any(), "r1", map[string]interface{}{"writer": "이영희"}).Return(nil),
		st.EXPECT().GetReport(gomock.Any(), "r1").Return(&updated, nil),
	)

	f, err := repo.Form(context.Background(), "r1", report.ModeEdit)
	require.NoError(t, err)
	require.NoError(t, f.Set("writer", "이영희"))

	result, err := repo.Save(context.Background(), "r1", f)
	require.NoError(t, err)
	assert.Equal(t, Updated, result.Kind)
	assert.Equal(t, []string{"writer"}, result.Fields)
	assert.Equal(t, "이영희", result.Report.Writer)
	assert.Equal(t, stored.Manufacturer, result.Report.Manufacturer)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "이영희", list[0].Writer, "cache follows the store")
}

func TestSaveWithoutChanges(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	stored := storedReport()
	st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
		r := stored
		return &r, nil
	}).Times(2)
	st.EXPECT().PatchReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	f, err := repo.Form(context.Background(), "r1", report.ModeEdit)
	require.NoError(t, err)

	result, err := repo.Save(context.Background(), "r1", f)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, result.Kind)
}

func TestSaveKeepsStoredDateLayout(t *testing.T) {
	for _, date := range []string{"2024-05-02T09:30:00Z", "2024-05-02T18:30:00+09:00", "2024-05-02"} {
		t.Run(date, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()

			repo, st, _ := newTestRepository(ctl)
			stored := storedReport()
			stored.ReportDate = date
			updated := stored
			updated.Writer = "이영희"

			gomock.InOrder(
				st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
					r := stored
					return &r, nil
				}).Times(2),
				st.EXPECT().PatchReport(gomock.Any(), "r1", map[string]interface{}{"writer": "이영희"}).Return(nil),
				st.EXPECT().GetReport(gomock.Any(), "r1").Return(&updated, nil),
			)

			f, err := repo.Form(context.Background(), "r1", report.ModeEdit)
			require.NoError(t, err)
			require.NoError(t, f.Set("writer", "이영희"))

			result, err := repo.Save(context.Background(), "r1", f)
			require.NoError(t, err)
			assert.Equal(t, []string{"writer"}, result.Fields)
			assert.Equal(t, date, result.Report.ReportDate)
		})
	}
}

func TestSaveChangedDate(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	stored := storedReport()
	stored.ReportDate = "2024-05-02"
	updated := stored
	updated.ReportDate = "2024-05-03T00:00:00.000Z"

	gomock.InOrder(
		st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
			r := stored
			return &r, nil
		}).Times(2),
		st.EXPECT().PatchReport(gomock.Any(), "r1", map[string]interface{}{"reportDate": "2024-05-03T00:00:00.000Z"}).Return(nil),
		st.EXPECT().GetReport(gomock.Any(), "r1").Return(&updated, nil),
	)

	f, err := repo.Form(context.Background(), "r1", report.ModeEdit)
	require.NoError(t, err)
	require.NoError(t, f.Set("reportDate", "2024-05-03"))

	result, err := repo.Save(context.Background(), "r1", f)
	require.NoError(t, err)
	assert.Equal(t, []string{"reportDate"}, result.Fields)
}

func TestSaveRequiresEditMode(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, _, _ := newTestRepository(ctl)
	_, err := repo.Save(context.Background(), "r1", report.FormOf(storedReport(), report.ModeView, report.DefaultOptions()))
	assert.Equal(t, report.ErrWrongMode, err)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, _ := newTestRepository(ctl)
	other := storedReport()
	other.ID = "r2"
	st.EXPECT().ListReports(gomock.Any()).Return([]schema.Report{storedReport(), other}, nil).Times(1)
	st.EXPECT().DeleteReport(gomock.Any(), "r1").Return(nil).Times(1)

	_, err := repo.List(context.Background())
	require.NoError(t, err)

	_, err = repo.Delete(context.Background(), "r1", false)
	assert.Equal(t, ErrNotConfirmed, err)

	result, err := repo.Delete(context.Background(), "r1", true)
	require.NoError(t, err)
	assert.Equal(t, Deleted, result.Kind)
	assert.Nil(t, result.Report)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].ID)
}

func TestAppendPhotosKeepsExisting(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, blob := newTestRepository(ctl)
	stored := storedReport()

	var patched []string
	st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
		r := stored
		return &r, nil
	}).Times(1)
	blob.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), "image/jpeg").DoAndReturn(
		func(_ context.Context, path string, _ io.Reader, _ string) (string, error) {
			return "https://photos/" + path, nil
		}).Times(1)
	st.EXPECT().PatchReport(gomock.Any(), "r1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, fields map[string]interface{}) error {
			require.Len(t, fields, 1)
			patched = fields["photos.fieldPhotoURLs"].([]string)
			return nil
		}).Times(1)
	st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
		r := stored
		r.Photos.FieldPhotoURLs = patched
		return &r, nil
	}).Times(1)

	result, err := repo.AppendPhotos(context.Background(), "r1", schema.BucketField, []report.Attachment{
		{Name: "new.jpg", ContentType: "image/jpeg", Data: []byte("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, PhotosAppended, result.Kind)
	require.Len(t, patched, 3)
	assert.Equal(t, []string{"u1", "u2"}, patched[:2])
	assert.Contains(t, patched[2], "fieldPhotos/")
	assert.Equal(t, patched, result.Report.Photos.FieldPhotoURLs)

	_, err = repo.AppendPhotos(context.Background(), "r1", schema.BucketField, nil)
	assert.Equal(t, ErrNoFiles, err)
}

func TestDeletePhotoByURL(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, blob := newTestRepository(ctl)
	stored := storedReport()
	after := stored
	after.Photos.FieldPhotoURLs = []string{"u2"}

	st.EXPECT().GetReport(gomock.Any(), "r1").DoAndReturn(func(context.Context, string) (*schema.Report, error) {
		r := stored
		return &r, nil
	}).Times(2)
	blob.EXPECT().Delete(gomock.Any(), "u1").Return(store.ErrBlobNotFound).Times(1)
	st.EXPECT().PatchReport(gomock.Any(), "r1", map[string]interface{}{"photos.fieldPhotoURLs": []string{"u2"}}).Return(nil).Times(1)
	st.EXPECT().GetReport(gomock.Any(), "r1").Return(&after, nil).Times(1)

	_, err := repo.DeletePhoto(context.Background(), "r1", schema.BucketReason, "u1")
	assert.Equal(t, ErrPhotoNotFound, err)

	result, err := repo.DeletePhoto(context.Background(), "r1", schema.BucketField, "u1")
	require.NoError(t, err)
	assert.Equal(t, PhotoDeleted, result.Kind)
	assert.Equal(t, []string{"u2"}, result.Report.Photos.FieldPhotoURLs)
}

func TestDeletePhotoStorageFailure(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	repo, st, blob := newTestRepository(ctl)
	stored := storedReport()
	st.EXPECT().GetReport(gomock.Any(), "r1").Return(&stored, nil).Times(1)
	blob.EXPECT().Delete(gomock.Any(), "u2").Return(fmt.Errorf("permission denied")).Times(1)
	st.EXPECT().PatchReport(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := repo.DeletePhoto(context.Background(), "r1", schema.BucketField, "u2")
	assert.Error(t, err)
}
