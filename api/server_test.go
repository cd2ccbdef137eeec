package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stl-inc/as-report-api/auth"
	"github.com/stl-inc/as-report-api/mocks"
)

var testSecret = []byte("test-secret")

const testAddressNotFound = "주소를 찾을 수 없습니다"

type fixture struct {
	ctl      *gomock.Controller
	store    *mocks.MockStore
	blob     *mocks.MockBlob
	provider *mocks.MockProvider
	geocoder *mocks.MockGeocoder
	server   *Server
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)

	ctl := gomock.NewController(t)
	f := &fixture{
		ctl:      ctl,
		store:    mocks.NewMockStore(ctl),
		blob:     mocks.NewMockBlob(ctl),
		provider: mocks.NewMockProvider(ctl),
		geocoder: mocks.NewMockGeocoder(ctl),
	}
	f.server = NewServer(f.store, f.blob, f.provider, f.geocoder, testSecret, Options{
		AddressNotFound: testAddressNotFound,
	})
	f.router = f.server.setupRouter()
	return f
}

func (f *fixture) finish() {
	f.server.Shutdown(context.Background())
	f.ctl.Finish()
}

func (f *fixture) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) doWithHeader(method, path, token, key, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(key, value)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	return f.do(method, path, token, r, "application/json")
}

func (f *fixture) signIn(t *testing.T) string {
	f.provider.EXPECT().SignIn(gomock.Any(), "tech@stl.co.kr", "secret").
		Return(&auth.Identity{UID: "u1", Email: "tech@stl.co.kr"}, nil).Times(1)

	w := f.doJSON(t, "POST", "/api/auth", "", gin.H{"email": "tech@stl.co.kr", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"jwt_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var e ErrorResponse
	decode(t, w, &e)
	return e
}

func TestRequestJWT(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	token := f.signIn(t)

	claims := &jwt.StandardClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "u1", claims.Subject)
	assert.NotEmpty(t, claims.Id)
	assert.Equal(t, int64(time.Hour.Seconds()), claims.ExpiresAt-claims.IssuedAt, "token lives as long as the session")
}

func TestRequestJWTInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	f.provider.EXPECT().SignIn(gomock.Any(), "tech@stl.co.kr", "wrong").Return(nil, auth.ErrInvalidCredentials).Times(1)

	w := f.doJSON(t, "POST", "/api/auth", "", gin.H{"email": "tech@stl.co.kr", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1002), errorOf(t, w).Code)

	w = f.doJSON(t, "POST", "/api/auth", "", gin.H{"email": "tech@stl.co.kr"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(1011), errorOf(t, w).Code)
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	w := f.do("GET", "/api/auth/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	e := errorOf(t, w)
	assert.Equal(t, int64(1001), e.Code)
	assert.Equal(t, "/", e.Redirect)

	w = f.do("GET", "/api/auth/me", "not-a-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1003), errorOf(t, w).Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "u1",
		Id:        "gone",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	w = f.do("GET", "/api/auth/me", expired, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1004), errorOf(t, w).Code)

	// a token of a session this server never started
	unknown, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "u1",
		Id:        "unknown",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	w = f.do("GET", "/api/auth/me", unknown, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1003), errorOf(t, w).Code)

	token := f.signIn(t)
	w = f.do("GET", "/api/auth/me", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		UID      string  `json:"uid"`
		Email    string  `json:"email"`
		ExpireIn float64 `json:"expire_in"`
	}
	decode(t, w, &me)
	assert.Equal(t, "u1", me.UID)
	assert.Equal(t, "tech@stl.co.kr", me.Email)
	assert.True(t, me.ExpireIn > 3500)
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	token := f.signIn(t)
	f.provider.EXPECT().SignOut(gomock.Any(), "u1").Return(nil).Times(1)

	w := f.do("POST", "/api/drafts", token, bytes.NewReader([]byte(`{}`)), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do("DELETE", "/api/auth", token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do("GET", "/api/auth/me", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1003), errorOf(t, w).Code)
	assert.Equal(t, 0, f.server.drafts.Len(), "drafts of the session are dropped")
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	f.store.EXPECT().Ping().Return(nil).Times(1)

	w := f.do("GET", "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "OK", resp["status"])
}

func TestInformation(t *testing.T) {
	f := newFixture(t)
	defer f.finish()

	w := f.do("GET", "/api/information", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Information struct {
			SessionDuration float64  `json:"session_duration"`
			PhoneNumbers    []string `json:"phone_numbers"`
		} `json:"information"`
	}
	decode(t, w, &resp)
	assert.Equal(t, time.Hour.Seconds(), resp.Information.SessionDuration)
	assert.Equal(t, []string{"010 7421 1684", "없음", "기타"}, resp.Information.PhoneNumbers)
}

func TestParseGeoPosition(t *testing.T) {
	lat, lng, err := parseGeoPosition("37.56;126.97")
	assert.NoError(t, err)
	assert.Equal(t, 37.56, lat)
	assert.Equal(t, 126.97, lng)

	_, _, err = parseGeoPosition("37.56")
	assert.Error(t, err)

	_, _, err = parseGeoPosition("a;b")
	assert.Error(t, err)

	_, _, err = parseGeoPosition("137.56;126.97")
	assert.Error(t, err)
}
