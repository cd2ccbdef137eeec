package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/stl-inc/as-report-api/auth"
	"github.com/stl-inc/as-report-api/browse"
	"github.com/stl-inc/as-report-api/capture"
	"github.com/stl-inc/as-report-api/dictation"
	"github.com/stl-inc/as-report-api/geo"
	"github.com/stl-inc/as-report-api/logmodule"
	"github.com/stl-inc/as-report-api/mapview"
	"github.com/stl-inc/as-report-api/pdf"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/store"
	"github.com/stl-inc/as-report-api/utils"
)

const maxMultipartMemory = 32 << 20

var log *logrus.Entry

func init() {
	log = logrus.WithField("prefix", "gin")
}

// Options tune the behaviour of the server
type Options struct {
	SessionDuration time.Duration
	// Camera is the source of streams for the in-page camera
	Camera capture.Camera
	// ReportOptions are the preset choices of the report form
	ReportOptions report.Options
	// MergeCapturedPhotos adds camera captures to the field photos on submit
	MergeCapturedPhotos bool
	// AddressNotFound is shown when an address cannot be resolved
	AddressNotFound string
	Exporter        *pdf.Exporter
	AllowOrigins    []string
}

// Server to run a http server instance
type Server struct {
	// Server instance
	server *http.Server

	// Stores
	store store.Store
	blob  store.Blob

	// HS256 secret of the session tokens
	jwtSecret []byte

	provider auth.Provider
	guard    *auth.Guard

	maps     *mapview.Registry
	drafts   *report.Drafts
	reports  *report.Service
	browser  *browse.Repository
	exporter *pdf.Exporter

	options Options
}

// NewServer new instance of server
func NewServer(
	st store.Store,
	blob store.Blob,
	provider auth.Provider,
	geocoder geo.Geocoder,
	jwtSecret []byte,
	options Options) *Server {
	if options.Camera == nil {
		options.Camera = capture.PushCamera{Available: true}
	}
	if options.ReportOptions.PhoneNumbers == nil && options.ReportOptions.Manufacturers == nil {
		options.ReportOptions = report.DefaultOptions()
	}
	if options.Exporter == nil {
		options.Exporter = pdf.NewExporter(blob)
	}

	s := &Server{
		store:     st,
		blob:      blob,
		jwtSecret: jwtSecret,
		provider:  provider,
		exporter:  options.Exporter,
		options:   options,
	}

	s.guard = auth.NewGuard(provider, options.SessionDuration, auth.WithNotifier(s.endSession))
	s.maps = mapview.NewRegistry(func() *mapview.Manager {
		return mapview.NewManager(st, st, geocoder, options.AddressNotFound)
	})
	s.drafts = report.NewDrafts(options.Camera)
	s.reports = report.NewService(st, blob, s.drafts)
	s.reports.MergeCaptured = options.MergeCapturedPhotos
	s.browser = browse.NewRepository(st, blob, s.reports.Uploader(), options.ReportOptions)

	return s
}

// Run to run the server
func (s *Server) Run(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.setupRouter(),
	}

	return s.server.ListenAndServe()
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         10 * time.Second,
	}))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Geo-Position", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.options.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = s.options.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	apiRoute := r.Group("/api")
	apiRoute.Use(logmodule.Ginrus("API"))
	apiRoute.GET("/information", s.information)
	apiRoute.POST("/auth", s.requestJWT)

	// photo urls end up in <img> tags and carry no token
	apiRoute.GET("/photos/*path", s.photo)

	// api route other than the above will apply the following middleware
	apiRoute.Use(s.authMiddleware())

	authRoute := apiRoute.Group("/auth")
	{
		authRoute.DELETE("", s.signOut)
		authRoute.GET("/me", s.me)
	}

	mapRoute := apiRoute.Group("/map")
	{
		mapRoute.GET("", s.loadMap)
		mapRoute.GET("/options", s.mapOptions)
		mapRoute.POST("/click", s.clickMap)
		mapRoute.POST("/confirm", s.confirmMarker)
		mapRoute.POST("/markers/:id/select", s.selectMarker)
		mapRoute.DELETE("/marker", s.deleteMarker)
		mapRoute.POST("/locate", s.locate)
		mapRoute.GET("/search", s.searchPlace)
		mapRoute.POST("/report", s.reportFromMap)
		mapRoute.GET("/reports", s.reportsAtMarker)
	}
	apiRoute.GET("/markers.geojson", s.markersGeoJSON)

	draftRoute := apiRoute.Group("/drafts")
	{
		draftRoute.POST("", s.openDraft)
		draftRoute.GET("/:id", s.getDraft)
		draftRoute.PATCH("/:id", s.updateDraft)
		draftRoute.DELETE("/:id", s.discardDraft)
		draftRoute.POST("/:id/photos/:bucket", s.attachDraftPhotos)
		draftRoute.POST("/:id/submit", s.submitDraft)

		draftRoute.POST("/:id/camera", s.openCamera)
		draftRoute.DELETE("/:id/camera", s.closeCamera)
		draftRoute.PUT("/:id/camera/frame", s.pushFrame)
		draftRoute.POST("/:id/camera/capture", s.capturePhoto)
		draftRoute.GET("/:id/captures", s.listCaptures)
		draftRoute.DELETE("/:id/captures/:index", s.dropCapture)

		draftRoute.GET("/:id/dictation", s.dictate)
	}

	reportRoute := apiRoute.Group("/reports")
	{
		reportRoute.GET("", s.listReports)
		reportRoute.GET("/:id", s.getReport)
		reportRoute.PATCH("/:id", s.saveReport)
		reportRoute.DELETE("/:id", s.deleteReport)
		reportRoute.POST("/:id/photos/:bucket", s.appendReportPhotos)
		reportRoute.DELETE("/:id/photos/:bucket", s.deleteReportPhoto)
		reportRoute.GET("/:id/pdf", s.reportPDF)
	}

	r.GET("/healthz", s.healthz)

	return r
}

// Shutdown to shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.guard.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// endSession forgets everything a session left behind
func (s *Server) endSession(session auth.Session) {
	s.maps.Drop(session.ID)
	s.drafts.DropSession(session.ID)
	log.WithField("uid", session.UID).Debug("session state dropped")
}

// shouldInterupt sends error message and determine if it should interupt the current flow
func shouldInterupt(err error, c *gin.Context) bool {
	if err == nil {
		return false
	}

	code, resp := errorStatus(err)
	if code == http.StatusInternalServerError {
		log.Error(err)
	}
	abortWithEncoding(c, code, resp, err)
	return true
}

func (s *Server) healthz(c *gin.Context) {
	// Ping db
	err := s.store.Ping()
	if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"version": viper.GetString("server.version"),
	})
}

func (s *Server) information(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"information": map[string]interface{}{
			"server": map[string]interface{}{
				"version": viper.GetString("server.version"),
			},
			"session_duration":      s.guard.Duration().Seconds(),
			"dictation_language":    dictation.Language,
			"merge_captured_photos": s.options.MergeCapturedPhotos,
			"phone_numbers":         s.options.ReportOptions.PhoneNumbers,
			"manufacturers":         s.options.ReportOptions.Manufacturers,
		},
	})
}

// localizer picks the messages matching the Accept-Language header
func localizer(c *gin.Context) *i18n.Localizer {
	lang := c.GetHeader("Accept-Language")
	if lang == "" {
		lang = viper.GetString("i18n.lang")
	}
	return utils.NewLocalizer(lang)
}

func translate(c *gin.Context, id, fallback string) string {
	return utils.Translate(localizer(c), id, fallback)
}

func responseWithEncoding(c *gin.Context, code int, obj ErrorResponse) {
	obj.Message = translate(c, fmt.Sprintf("error.%d", obj.Code), obj.Message)

	acceptEncoding := c.GetHeader("Accept-Encoding")
	switch acceptEncoding {
	default:
		c.JSON(code, obj)
	}
}

func abortWithEncoding(c *gin.Context, code int, obj ErrorResponse, errors ...error) {
	for _, err := range errors {
		c.Error(err)
	}
	responseWithEncoding(c, code, obj)
	c.Abort()
}
