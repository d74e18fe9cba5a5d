package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kardianos/service"
	"github.com/rs/zerolog"

	"theta-panel/internal/api"
	"theta-panel/internal/camera"
	"theta-panel/internal/config"
	"theta-panel/internal/logging"
	"theta-panel/internal/metrics"
	"theta-panel/internal/relay"
	"theta-panel/internal/server"
)

// program adapts the panel server to the service manager lifecycle.
type program struct {
	cfg    config.Config
	server *server.Server
}

func (p *program) Start(s service.Service) error {
	router, err := newRouter(p.cfg)
	if err != nil {
		return err
	}
	p.server = server.New(p.cfg.Listen, router)
	return p.server.Start()
}

func (p *program) Stop(s service.Service) error {
	if p.server == nil {
		return nil
	}
	return p.server.Stop()
}

func newRouter(cfg config.Config) (http.Handler, error) {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	store := camera.NewStore(cfg.Camera)
	m := metrics.New(store)

	tr := camera.NewTransport(store,
		camera.WithRequestTimeout(cfg.RequestTimeout),
		camera.WithLogger(logging.NewResty()),
	)
	poller := camera.NewPoller(tr,
		camera.WithPollInterval(cfg.PollInterval),
		camera.WithPollAttempts(cfg.PollAttempts),
		camera.WithObserver(m.ObserveCommand),
	)
	client := camera.NewClient(tr, poller, camera.WithDownloadTimeout(cfg.DownloadTimeout))

	h := api.NewHandler(store, client, relay.New(m))
	return api.NewRouter(h, api.RouterOptions{
		CORSOrigins:    cfg.CORSOrigins,
		AllowedClients: cfg.AllowedClients,
		Metrics:        m,
	})
}
