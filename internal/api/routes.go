package api

import (
	"github.com/gin-gonic/gin"

	"theta-panel/internal/metrics"
	"theta-panel/internal/middleware"
	"theta-panel/internal/web"
)

type RouterOptions struct {
	CORSOrigins    []string
	AllowedClients []string
	Metrics        *metrics.Metrics
}

// NewRouter assembles the panel: JSON API, camera relays, health and metrics
// endpoints, and the embedded UI.
func NewRouter(h *Handler, opts RouterOptions) (*gin.Engine, error) {
	allow, err := middleware.AllowClients(opts.AllowedClients)
	if err != nil {
		return nil, err
	}
	cors, err := middleware.CORS(opts.CORSOrigins)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(opts.Metrics), allow, cors)

	r.GET("/healthz", Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/", web.Index)
	r.StaticFS("/static", web.Static())

	apiGroup := r.Group("/api")
	apiGroup.GET("/config", h.GetConfig)
	apiGroup.POST("/config", h.UpdateConfig)

	cam := apiGroup.Group("/camera")
	cam.GET("/info", h.Info)
	cam.GET("/state", h.State)
	cam.POST("/take-picture", h.TakePicture)
	cam.GET("/files", h.ListFiles)
	cam.GET("/download", h.Download)
	cam.GET("/preview", h.Preview)
	cam.GET("/preview/ws", h.PreviewWebSocket)
	cam.GET("/preview/snapshot", h.Snapshot)

	return r, nil
}
