package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/api/option"

	"github.com/stl-inc/as-report-api/api"
	"github.com/stl-inc/as-report-api/auth"
	"github.com/stl-inc/as-report-api/geo"
	"github.com/stl-inc/as-report-api/pdf"
	"github.com/stl-inc/as-report-api/report"
	"github.com/stl-inc/as-report-api/schema"
	"github.com/stl-inc/as-report-api/store"
	"github.com/stl-inc/as-report-api/utils"
)

var (
	server      *api.Server
	mongoClient *mongo.Client
)

func initLog() {
	logLevel, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(logLevel)
	}

	log.SetOutput(os.Stdout)

	log.SetFormatter(&prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	})
}

func loadConfig(file string) {
	// .env is optional
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file.")
	}

	// Config from file
	viper.SetConfigType("yaml")
	if file != "" {
		viper.SetConfigFile(file)
	}

	viper.AddConfigPath("/.config/")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Println("No config file. Read config from env.")
		viper.AllowEmptyEnv(false)
	}

	// Config from env if possible
	viper.AutomaticEnv()
	viper.SetEnvPrefix("asreport")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("session.duration", time.Hour)
	viper.SetDefault("store.driver", "mongo")
	viper.SetDefault("blob.driver", "gridfs")
	viper.SetDefault("i18n.dir", "./i18n")
	viper.SetDefault("i18n.lang", "ko")
	viper.SetDefault("pdf.timezone", "Asia/Seoul")
	viper.SetDefault("mongo.database", "as-report")
	viper.SetDefault("mongo.pool", 20)
}

func connectMongo(ctx context.Context) *mongo.Client {
	if mongoClient != nil {
		return mongoClient
	}

	opts := options.Client().ApplyURI(viper.GetString("mongo.conn"))
	opts.SetMaxPoolSize(viper.GetUint64("mongo.pool"))
	client, err := mongo.NewClient(opts)
	if nil != err {
		log.Panicf("create mongo client with error: %s", err)
	}

	if err := client.Connect(ctx); nil != err {
		log.Panicf("connect mongo database with error: %s", err)
	}

	if err := schema.NewMongoDBIndexer(client, viper.GetString("mongo.database")).IndexAll(); err != nil {
		log.Panicf("index mongo database with error: %s", err)
	}

	mongoClient = client
	return client
}

func newFirebaseApp(ctx context.Context) *firebase.App {
	conf := &firebase.Config{
		ProjectID:     viper.GetString("firebase.project_id"),
		StorageBucket: viper.GetString("firebase.storage_bucket"),
	}

	var opts []option.ClientOption
	if file := viper.GetString("firebase.credentials"); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		log.Panicf("init firebase app with error: %s", err)
	}
	return app
}

func newStore(ctx context.Context, app *firebase.App) store.Store {
	switch viper.GetString("store.driver") {
	case "firestore":
		client, err := app.Firestore(ctx)
		if err != nil {
			log.Panicf("create firestore client with error: %s", err)
		}
		return store.NewFirestoreStore(client)
	case "mongo":
		return store.NewMongoStore(connectMongo(ctx), viper.GetString("mongo.database"))
	}
	log.Panicf("unknown store driver: %s", viper.GetString("store.driver"))
	return nil
}

func newBlob(ctx context.Context, app *firebase.App) store.Blob {
	switch viper.GetString("blob.driver") {
	case "firebase":
		client, err := app.Storage(ctx)
		if err != nil {
			log.Panicf("create storage client with error: %s", err)
		}
		name := viper.GetString("firebase.storage_bucket")
		bucket, err := client.Bucket(name)
		if err != nil {
			log.Panicf("open storage bucket with error: %s", err)
		}
		return store.NewFirebaseBlob(bucket, name)
	case "gridfs":
		return store.NewGridFSBlob(connectMongo(ctx), viper.GetString("mongo.database"), viper.GetString("blob.public_url"))
	}
	log.Panicf("unknown blob driver: %s", viper.GetString("blob.driver"))
	return nil
}

func newExporter(blob store.Blob) *pdf.Exporter {
	t := utils.Translator(utils.NewLocalizer(viper.GetString("i18n.lang")))
	opts := []pdf.Option{
		pdf.WithLabels(pdf.DefaultLabels().Translate(t)),
	}

	// report text is mostly Hangul, which the core pdf fonts cannot draw
	file := viper.GetString("pdf.font")
	if file == "" {
		log.Panic("pdf.font is required, e.g. NanumGothic.ttf")
	}
	ttf, err := ioutil.ReadFile(file)
	if err != nil {
		log.Panic(err)
	}
	opts = append(opts, pdf.WithFont(pdf.Font{TTF: ttf}))

	if file := viper.GetString("pdf.logo"); file != "" {
		logo, err := ioutil.ReadFile(file)
		if err != nil {
			log.Panic(err)
		}
		opts = append(opts, pdf.WithLogo(logo))
	}

	if zone, err := time.LoadLocation(viper.GetString("pdf.timezone")); err != nil {
		log.WithField("prefix", "init").Warnf("unknown timezone, dates are printed in UTC: %s", err)
	} else {
		opts = append(opts, pdf.WithLocation(zone))
	}

	return pdf.NewExporter(blob, opts...)
}

func reportOptions() report.Options {
	options := report.DefaultOptions()
	if v := viper.GetStringSlice("report.phone_numbers"); len(v) > 0 {
		options.PhoneNumbers = v
	}
	if v := viper.GetStringSlice("report.manufacturers"); len(v) > 0 {
		options.Manufacturers = v
	}
	return options
}

func main() {
	var configFile string

	initialCtx, cancelInitialization := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Server is preparing to shutdown")

		if initialCtx != nil && cancelInitialization != nil {
			log.Info("Cancelling initialization")
			cancelInitialization()
			<-initialCtx.Done()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if server != nil {
			log.Info("Shutdown api server")
			if err := server.Shutdown(ctx); err != nil {
				log.Error("Server Shutdown:", err)
			}
		}

		if mongoClient != nil {
			log.Info("Shutting down db store")
			if err := mongoClient.Disconnect(ctx); err != nil {
				log.Error(err)
			}
		}

		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}()

	flag.StringVar(&configFile, "c", "./config.yaml", "[optional] path of configuration file")
	flag.Parse()

	loadConfig(configFile)

	initLog()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	// Sentry
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              viper.GetString("sentry.dsn"),
		AttachStacktrace: true,
		Environment:      viper.GetString("sentry.environment"),
		Dist:             viper.GetString("sentry.dist"),
	}); err != nil {
		log.Error(err)
	}
	log.WithField("prefix", "init").Info("Initialized sentry")

	utils.InitI18NBundle()
	log.WithField("prefix", "init").Info("Loaded messages")

	app := newFirebaseApp(initialCtx)
	admin, err := app.Auth(initialCtx)
	if err != nil {
		log.Panic(err)
	}
	provider := auth.NewFirebaseProvider(viper.GetString("firebase.api_key"), admin, httpClient)
	if endpoint := viper.GetString("firebase.sign_in_endpoint"); endpoint != "" {
		provider.WithEndpoint(endpoint)
	}
	log.WithField("prefix", "init").Info("Initialized firebase")

	st := newStore(initialCtx, app)
	blob := newBlob(initialCtx, app)
	log.WithField("prefix", "init").Infof("Initialized %s store with %s photos", viper.GetString("store.driver"), viper.GetString("blob.driver"))

	// Geocoding
	geocoder, err := geo.NewFromKeys(geo.Keys{
		Google:   viper.GetString("map.key"),
		Kakao:    viper.GetString("kakao.key"),
		KakaoURL: viper.GetString("kakao.url"),
	})
	if err != nil {
		log.Panic(err)
	}

	jwtSecret := viper.GetString("jwt.secret")
	if jwtSecret == "" {
		log.Panic("jwt.secret is required")
	}

	lang := utils.NewLocalizer(viper.GetString("i18n.lang"))

	// Init http server
	server = api.NewServer(st, blob, provider, geocoder, []byte(jwtSecret), api.Options{
		SessionDuration:     viper.GetDuration("session.duration"),
		ReportOptions:       reportOptions(),
		MergeCapturedPhotos: viper.GetBool("report.merge_captured_photos"),
		AddressNotFound:     utils.Translate(lang, "map.address_not_found", "주소를 찾을 수 없습니다"),
		Exporter:            newExporter(blob),
		AllowOrigins:        viper.GetStringSlice("server.allow_origins"),
	})
	log.WithField("prefix", "init").Info("Initialized http server")

	// Remove initial context
	initialCtx = nil
	cancelInitialization = nil

	log.Fatal(server.Run(":" + viper.GetString("server.port")))
}
