package deps

import (
	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/config"
	"github.com/bwise1/waste_patrol/internal/db"
	"github.com/bwise1/waste_patrol/internal/events"
	"github.com/bwise1/waste_patrol/internal/http/detection"
	googleauth "github.com/bwise1/waste_patrol/internal/http/google"
	stadiamaps "github.com/bwise1/waste_patrol/internal/http/stadia_maps"
	"github.com/bwise1/waste_patrol/internal/metrics"
	"github.com/bwise1/waste_patrol/util/email"
	"github.com/bwise1/waste_patrol/util/storage"
	"github.com/bwise1/waste_patrol/util/websockets"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

type Dependencies struct {
	DB        *db.DB
	Store     storage.Store
	WebSocket *websockets.WebSocketManager
	Detector  *detection.Client
	Analyzer  detection.Analyzer
	Geocoder  *stadiamaps.Client
	Google    *googleauth.Client
	Publisher events.Publisher
	Mailer    email.Sender
	Cache     *cache.Cache
}

func New(cfg *config.Config) (*Dependencies, error) {
	database, err := db.New(cfg.Dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}

	store, err := storage.New(cfg)
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "set up image storage")
	}

	detector, err := detection.NewClient(cfg.AIServiceURL, cfg.AIServiceTimeout)
	if err != nil {
		database.Close()
		return nil, errors.Wrap(err, "set up detection client")
	}

	d := &Dependencies{
		DB:        database,
		Store:     store,
		WebSocket: websockets.NewWebSocketManager(),
		Detector:  detector,
		Analyzer:  detector,
		Google:    googleauth.NewClient(),
		Cache:     cache.New(cfg.StatsCacheTTL, 2*cfg.StatsCacheTTL),
	}

	if cfg.AIMockFallback {
		d.Analyzer = detection.Fallback{
			Primary:   detector,
			Secondary: detection.Mock{},
			OnFailure: func(error) {
				metrics.AnalysisTotal.WithLabelValues(detection.SourceAI, "fallback").Inc()
			},
		}
	}

	if cfg.StadiaAPIKey != "" {
		d.Geocoder = stadiamaps.NewClient(cfg.StadiaAPIKey)
	}

	d.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.WithError(err).Warn("event broker unavailable, report events will only reach websocket clients")
		} else {
			d.Publisher = publisher
		}
	}

	d.Mailer = email.LogMailer{}
	if cfg.SendgridAPIKey != "" {
		d.Mailer = email.NewMailer(cfg.SendgridAPIKey, cfg.MailFromEmail, cfg.MailFromName)
	}

	log.WithFields(log.Fields{
		"storage":   cfg.StorageDriver,
		"geocoding": d.Geocoder != nil,
		"broker":    cfg.AMQPURL != "",
		"sendgrid":  cfg.SendgridAPIKey != "",
	}).Info("dependencies ready")

	return d, nil
}

func (d *Dependencies) Pool() *pgxpool.Pool {
	return d.DB.Pool()
}

func (d *Dependencies) Close() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			log.WithError(err).Warn("closing event publisher")
		}
	}
	d.DB.Close()
}
