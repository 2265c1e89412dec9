/*
DESCRIPTION
  rangerapi is the backend service for field ranger observations.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// rangerapi accepts sightings, incidents and maintenance reports from
// rangers in the field, serves them back for map display, alerts
// staff to poaching incidents and nearby fires, and manages ranger
// accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ausocean/ranger/blob"
	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/firms"
	"github.com/ausocean/ranger/gauth"
	"github.com/ausocean/ranger/ingest"
	"github.com/ausocean/ranger/model"
	"github.com/ausocean/ranger/notify"
	"github.com/ausocean/ranger/pin"
)

// Project constants.
const (
	projectID = "ranger"
	version   = "v0.1.0"
	bodyLimit = 12 << 20 // Large enough for a phone photo.
)

// service defines the properties of our web service.
type service struct {
	setupMutex sync.Mutex
	cfg        config
	log        logging.Logger
	debug      bool
	standalone bool
	storeKind  string // "cloud" or "memory".
	blobKind   string // "gcs", "minio" or "memory".
	secrets    map[string]string
	store      datastore.Store // Nil if the store could not be set up.
	blobs      blob.Store      // Nil if images are discarded.
	ingest     *ingest.Service
	pins       *pin.Service
	notifier   *notify.Notifier
	firms      *firms.Client
	scheduler  *scheduler
	now        func() time.Time

	notifyOpts []notify.Option      // Extra notifier options, applied last.
	firmsOpts  []firms.ClientOption // Extra FIRMS client options.
}

// svc is an instance of our service.
var svc = &service{}

func main() {
	defaultPort := 8080
	v := os.Getenv("PORT")
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			defaultPort = i
		}
	}

	var host string
	var port int
	flag.BoolVar(&svc.debug, "debug", false, "Run in debug mode.")
	flag.BoolVar(&svc.standalone, "standalone", false, "Run in standalone mode, with in-memory stores.")
	flag.StringVar(&host, "host", "", "Host we listen on")
	flag.IntVar(&port, "port", defaultPort, "Port we listen on")
	flag.StringVar(&svc.storeKind, "store", "cloud", "Document store: cloud or memory")
	flag.StringVar(&svc.blobKind, "blob", "gcs", "Image store: gcs, minio or memory")
	flag.StringVar(&svc.cfg.bucket, "bucket", "", "Image bucket name")
	flag.Parse()

	level := logging.Info
	if svc.debug {
		level = logging.Debug
	}
	svc.log = logging.New(int8(level), os.Stdout, true)

	bucket := svc.cfg.bucket
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		svc.log.Fatal("invalid configuration", "error", err)
	}
	if bucket != "" {
		cfg.bucket = bucket
	}
	svc.cfg = cfg
	if svc.standalone {
		svc.storeKind, svc.blobKind = "memory", "memory"
	}

	// Set the logging level of fiber's own logger.
	if svc.debug {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelWarn)
	}

	// Perform one-time setup or bail.
	ctx := context.Background()
	err = svc.setup(ctx)
	if err != nil {
		svc.log.Fatal("could not set up service", "error", err)
	}

	app := svc.newApp()
	listenOn := fmt.Sprintf("%s:%d", host, port)
	svc.log.Info("starting web server", "address", listenOn, "version", version, "production", cfg.production)
	err = app.Listen(listenOn)
	if err != nil {
		svc.log.Fatal("web server failed", "error", err)
	}
}

// setup executes per-instance one-time warmup and is used to
// initialize the service. A document store that cannot be reached is
// logged and leaves the service running without persistence, so that
// clients see ServiceUnavailable rather than a dead server. Any other
// errors are returned.
func (svc *service) setup(ctx context.Context) error {
	svc.setupMutex.Lock()
	defer svc.setupMutex.Unlock()

	if svc.ingest != nil {
		return nil
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	if svc.secrets == nil {
		var err error
		svc.secrets, err = gauth.GetSecrets(ctx, projectID, nil)
		switch {
		case err != nil && !svc.standalone:
			return fmt.Errorf("could not get secrets: %w", err)
		case err != nil:
			svc.log.Warning("no secrets, keyed routes are disabled", "error", err)
			svc.secrets = map[string]string{}
		}
	}
	if !svc.standalone {
		for _, k := range []string{secretAPIKey, secretAdminKey, secretJWTSecret} {
			if svc.secrets[k] == "" {
				return fmt.Errorf("missing secret %s", k)
			}
		}
	}

	base, err := datastore.NewStore(ctx, svc.storeKind, svc.cfg.storeID, svc.cfg.credentials)
	if err != nil {
		svc.log.Error("could not set up datastore, persistence unavailable", "kind", svc.storeKind, "error", err)
	} else {
		svc.store = datastore.NewCachedStore(base, []string{model.TypeUser}, datastore.WithTTL(svc.cfg.userCacheTTL))
		svc.log.Info("set up datastore", "kind", svc.storeKind, "id", svc.cfg.storeID)
	}

	svc.blobs, err = blob.New(ctx, svc.blobKind, svc.cfg.bucket, svc.cfg.minio)
	if err != nil {
		svc.log.Warning("could not set up image store, images will be discarded", "kind", svc.blobKind, "error", err)
		svc.blobs = nil
	}

	err = svc.setupNotifier()
	if err != nil {
		return fmt.Errorf("could not set up notifier: %w", err)
	}

	svc.firms = firms.NewClient(svc.secrets[secretFIRMSKey], svc.firmsOpts...)

	var kv pin.KV = pin.NewMemKV()
	if svc.store != nil {
		kv = pin.NewStoreKV(svc.store)
	}
	svc.pins = pin.NewService(kv, pin.WithClock(svc.now))

	opts := []ingest.Option{
		ingest.WithNotifier(incidentNotifier{svc.notifier}),
		ingest.WithClock(svc.now),
	}
	if svc.blobs != nil {
		opts = append(opts, ingest.WithBlobStore(svc.blobs))
	}
	if svc.cfg.failClosed {
		opts = append(opts, ingest.WithFailClosed())
	}
	svc.ingest = ingest.NewService(svc.store, svc.log, opts...)

	err = svc.setupScheduler()
	if err != nil {
		return fmt.Errorf("could not set up cron scheduler: %w", err)
	}
	return nil
}

// setupNotifier initializes the email notifier. Without mail API
// secrets, notifications are logged.
func (svc *service) setupNotifier() error {
	opts := []notify.Option{
		notify.WithLogger(svc.log),
		notify.WithRecipients(svc.cfg.recipients),
	}
	if svc.cfg.sender != "" {
		opts = append(opts, notify.WithSender(svc.cfg.sender))
	}
	if svc.cfg.mapURL != "" {
		opts = append(opts, notify.WithMapURL(svc.cfg.mapURL))
	}
	if svc.cfg.notifyPeriod > 0 {
		opts = append(opts, notify.WithPeriod(svc.cfg.notifyPeriod))
	}
	if svc.store != nil {
		opts = append(opts, notify.WithStore(notify.NewTimeStore(svc.store)))
	}
	pub, priv := svc.secrets["mailjetPublicKey"], svc.secrets["mailjetPrivateKey"]
	switch {
	case pub != "" && priv != "":
		opts = append(opts, notify.WithSecrets(svc.secrets))
	case pub != "" || priv != "":
		svc.log.Warning("incomplete mail API secrets, notifications will only be logged")
	default:
		svc.log.Warning("no mail API secrets, notifications will only be logged")
	}
	if len(svc.cfg.recipients) == 0 {
		svc.log.Warning("no notification recipients configured")
	}

	svc.notifier = &notify.Notifier{}
	return svc.notifier.Init(append(opts, svc.notifyOpts...)...)
}

// setupScheduler starts the scheduler with the fire check and PIN
// sweep jobs.
func (svc *service) setupScheduler() error {
	var err error
	svc.scheduler, err = newScheduler(svc.log, svc.cfg.timezone)
	if err != nil {
		return err
	}

	err = svc.scheduler.Set("pin-sweep", svc.cfg.pinSweep, svc.sweepPINs)
	if err != nil {
		return err
	}

	if svc.cfg.fireSchedule == "" {
		return nil
	}
	lat, lon := svc.cfg.alertArea.Center()
	spec, err := cronSpec(svc.cfg.fireSchedule, lat, lon)
	if err != nil {
		return err
	}
	return svc.scheduler.Set("fire-check", spec, func(ctx context.Context) error {
		res, err := svc.fireCheck(ctx)
		if err != nil {
			return err
		}
		svc.log.Info("scheduled fire check", "checked", res.Checked, "in_region", res.InRegion, "alerted", res.Alerted)
		return nil
	})
}

// sweepPINs evicts expired passcodes.
func (svc *service) sweepPINs(ctx context.Context) error {
	n, err := svc.pins.Sweep(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.log.Debug("swept expired PINs", "count", n)
	}
	return nil
}

// newApp returns the fiber app serving all routes.
func (svc *service) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      projectID + " " + version,
		ErrorHandler: svc.errorHandler,
		BodyLimit:    bodyLimit,
	})

	// Recover from panics.
	app.Use(recover.New())

	// CORS middleware.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Admin-Key",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
	}))

	// Log requests in debug mode.
	if svc.debug {
		app.Use(logger.New())
	}

	// Unlimited routes.
	app.Get("/", svc.versionHandler)
	app.Get("/health", svc.healthHandler)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(rateLimit(svc.cfg.rateLimitMax, svc.cfg.rateLimitWindow))

	app.Group("/auth", rateLimit(svc.cfg.authLimitMax, svc.cfg.rateLimitWindow)).
		Post("/request-pin", svc.requestPINHandler).
		Post("/verify-pin", svc.verifyPINHandler).
		Get("/session", svc.sessionHandler)

	apiKey := svc.apiKeyAuth()
	app.Post("/observations", apiKey, svc.createObservationHandler)
	app.Get("/observations", apiKey, svc.listObservationsHandler)
	app.Post("/water-monitoring", apiKey, svc.createWaterReadingHandler)
	app.Get("/water-monitoring", apiKey, svc.listWaterReadingsHandler)
	app.Get("/fires", apiKey, svc.firesHandler)

	jobs := app.Group("/cron", svc.cronAuth())
	jobs.Get("/fire-check", svc.fireCheckHandler)
	jobs.Get("/pin-sweep", svc.pinSweepHandler)

	app.Group("/admin/users", svc.adminAuth()).
		Get("/", svc.listUsersHandler).
		Post("/", svc.createUserHandler).
		Get("/:id", svc.getUserHandler).
		Patch("/:id", svc.updateUserHandler).
		Delete("/:id", svc.deleteUserHandler)

	return app
}

// versionHandler reports the service version.
func (svc *service) versionHandler(c *fiber.Ctx) error {
	return c.SendString(projectID + " " + version)
}

// healthHandler reports whether the service and its store are up.
func (svc *service) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"version":   version,
		"database":  svc.store != nil,
		"images":    svc.blobs != nil,
		"timestamp": svc.now().UTC().Format(time.RFC3339),
	})
}

// incidentNotifier counts incident notifications.
type incidentNotifier struct {
	*notify.Notifier
}

func (n incidentNotifier) NotifyIncident(ctx context.Context, obs *model.Observation) notify.Summary {
	sum := n.Notifier.NotifyIncident(ctx, obs)
	notifications.WithLabelValues(notify.KindIncident, outcome(sum.Success)).Inc()
	return sum
}
