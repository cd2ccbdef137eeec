package api

import (
	"errors"
	"net/http"

	"github.com/stl-inc/as-report-api/auth"
	"github.com/stl-inc/as-report-api/browse"
	"github.com/stl-inc/as-report-api/capture"
	"github.com/stl-inc/as-report-api/dictation"
	"github.com/stl-inc/as-report-api/geo"
	"github.com/stl-inc/as-report-api/mapview"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
)

// signInPage is where the client goes once a session is gone
const signInPage = "/"

var (
	errorMessageMap = map[int64]string{
		999:  "internal server error",
		1001: "invalid authorization format",
		1002: "invalid email or password",
		1003: "invalid token",
		1004: "session expired",

		1010: "invalid parameters",
		1011: "cannot parse request",

		1300: "not found",
		1301: geo.ErrNoSearchResult.Error(),
		1302: geo.ErrNoGeoInfoFound.Error(),
		1303: report.ErrDraftNotFound.Error(),

		1400: capture.ErrCameraUnavailable.Error(),
		1401: capture.ErrCameraBusy.Error(),
		1402: mapview.ErrLocationUnavailable.Error(),
		1403: dictation.ErrUnsupported.Error(),
		1404: dictation.ErrAttached.Error(),

		1450: "action is not available in the current state",
		1451: report.ErrReadOnly.Error(),
		1452: browse.ErrNotConfirmed.Error(),

		1500: "failed to submit the report",
	}

	errorInternalServer             = errorJSON(999)
	errorInvalidAuthorizationFormat = errorJSON(1001)
	errorInvalidCredentials         = errorJSON(1002)
	errorInvalidToken               = errorJSON(1003)
	errorSessionExpired             = errorJSON(1004)

	errorInvalidParameters  = errorJSON(1010)
	errorCannotParseRequest = errorJSON(1011)

	errorNotFound        = errorJSON(1300)
	errorNoSearchResult  = errorJSON(1301)
	errorAddressNotFound = errorJSON(1302)
	errorDraftNotFound   = errorJSON(1303)

	errorCameraUnavailable   = errorJSON(1400)
	errorCameraBusy          = errorJSON(1401)
	errorLocationUnavailable = errorJSON(1402)
	errorSpeechUnsupported   = errorJSON(1403)
	errorDictationAttached   = errorJSON(1404)

	errorInvalidState = errorJSON(1450)
	errorReadOnly     = errorJSON(1451)
	errorNotConfirmed = errorJSON(1452)

	errorSubmitFailed = errorJSON(1500)
)

type ErrorResponse struct {
	Code     int64  `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// errorJSON converts an error code to a standardized error object
func errorJSON(code int64) ErrorResponse {
	var message string
	if msg, ok := errorMessageMap[code]; ok {
		message = msg
	} else {
		message = "unknown"
	}

	return ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// toSignIn points the client back to the sign in page
func toSignIn(e ErrorResponse) ErrorResponse {
	e.Redirect = signInPage
	return e
}

// errorStatus maps a domain error to its response. Unknown errors are
// internal errors.
func errorStatus(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorInvalidCredentials
	case errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized, toSignIn(errorSessionExpired)
	case errors.Is(err, auth.ErrSessionNotFound):
		return http.StatusUnauthorized, toSignIn(errorInvalidToken)

	case errors.Is(err, store.ErrReportNotFound),
		errors.Is(err, store.ErrLocationNotFound),
		errors.Is(err, store.ErrBlobNotFound),
		errors.Is(err, mapview.ErrUnknownMarker),
		errors.Is(err, report.ErrPhotoNotFound),
		errors.Is(err, browse.ErrPhotoNotFound):
		return http.StatusNotFound, errorNotFound
	case errors.Is(err, geo.ErrNoSearchResult):
		return http.StatusNotFound, errorNoSearchResult
	case errors.Is(err, geo.ErrNoGeoInfoFound):
		return http.StatusNotFound, errorAddressNotFound
	case errors.Is(err, report.ErrDraftNotFound):
		return http.StatusNotFound, errorDraftNotFound

	case errors.Is(err, capture.ErrCameraUnavailable):
		return http.StatusConflict, errorCameraUnavailable
	case errors.Is(err, capture.ErrCameraBusy):
		return http.StatusConflict, errorCameraBusy
	case errors.Is(err, mapview.ErrLocationUnavailable):
		return http.StatusConflict, errorLocationUnavailable
	case errors.Is(err, dictation.ErrUnsupported):
		return http.StatusConflict, errorSpeechUnsupported
	case errors.Is(err, dictation.ErrAttached):
		return http.StatusConflict, errorDictationAttached
	case errors.Is(err, mapview.ErrInvalidState),
		errors.Is(err, capture.ErrCameraClosed),
		errors.Is(err, capture.ErrNoFrame):
		return http.StatusConflict, errorInvalidState
	case errors.Is(err, report.ErrReadOnly),
		errors.Is(err, report.ErrWrongMode):
		return http.StatusConflict, errorReadOnly
	case errors.Is(err, browse.ErrNotConfirmed):
		return http.StatusConflict, errorNotConfirmed

	case errors.Is(err, report.ErrUnknownField),
		errors.Is(err, report.ErrNotDictated),
		errors.Is(err, schema.ErrUnknownBucket),
		errors.Is(err, browse.ErrUnknownFilter),
		errors.Is(err, browse.ErrNoFiles),
		errors.Is(err, store.ErrInvalidPath),
		errors.Is(err, store.ErrEmptyPatch):
		return http.StatusBadRequest, errorInvalidParameters
	}
	return http.StatusInternalServerError, errorInternalServer
}
