package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"theta-panel/internal/camera"
	"theta-panel/internal/relay"
	"theta-panel/pkg/models"
)

type Handler struct {
	store  *camera.Store
	camera *camera.Client
	relay  *relay.Relay
}

func NewHandler(store *camera.Store, client *camera.Client, rl *relay.Relay) *Handler {
	return &Handler{store: store, camera: client, relay: rl}
}

func respondError(c *gin.Context, status int, msg string, err error) {
	resp := models.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
		c.Error(err)
	}
	c.JSON(status, resp)
}

func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Get())
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req models.ConfigUpdate
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	cfg := h.store.Update(req)
	log.Info().
		Str("ip", cfg.IP).
		Int("port", cfg.Port).
		Str("mode", cfg.Mode).
		Bool("digest", cfg.UsesDigest()).
		Msg("camera config updated")
	c.JSON(http.StatusOK, models.ConfigResponse{Success: true, Config: cfg})
}

func (h *Handler) Info(c *gin.Context) {
	info, err := h.camera.Info(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error getting camera info")
		respondError(c, http.StatusInternalServerError, "Failed to get camera info", err)
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", info)
}

func (h *Handler) State(c *gin.Context) {
	state, err := h.camera.State(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error getting camera state")
		respondError(c, http.StatusInternalServerError, "Failed to get camera state", err)
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", state)
}

func (h *Handler) TakePicture(c *gin.Context) {
	fileURL, err := h.camera.TakePicture(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error taking picture")
		respondError(c, http.StatusInternalServerError, "Failed to take picture", err)
		return
	}
	c.JSON(http.StatusOK, models.TakePictureResponse{Success: true, FileURL: fileURL})
}

func (h *Handler) ListFiles(c *gin.Context) {
	var req models.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err)
		return
	}
	results, err := h.camera.ListFiles(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("Error listing files")
		respondError(c, http.StatusInternalServerError, "Failed to list files", err)
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", results)
}

func (h *Handler) Download(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		respondError(c, http.StatusBadRequest, "File path is required", nil)
		return
	}
	thumb := c.Query("thumb") == "true"

	resp, err := h.camera.OpenFile(c.Request.Context(), path, thumb)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error downloading file")
		respondError(c, http.StatusInternalServerError, "Failed to download file", err)
		return
	}
	h.relay.File(c.Writer, c.Request, resp)
}

func (h *Handler) Preview(c *gin.Context) {
	resp, err := h.camera.OpenLivePreview(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error starting live preview")
		respondError(c, http.StatusInternalServerError, "Failed to start live preview", err)
		return
	}
	h.relay.Preview(c.Writer, c.Request, resp)
}

func (h *Handler) PreviewWebSocket(c *gin.Context) {
	resp, err := h.camera.OpenLivePreview(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error starting live preview")
		respondError(c, http.StatusInternalServerError, "Failed to start live preview", err)
		return
	}
	h.relay.WebSocket(c.Writer, c.Request, resp)
}

func (h *Handler) Snapshot(c *gin.Context) {
	resp, err := h.camera.OpenLivePreview(c.Request.Context())
	if err == nil {
		err = h.relay.Snapshot(c.Writer, c.Request, resp)
	}
	if err != nil {
		log.Error().Err(err).Msg("Error capturing preview frame")
		respondError(c, http.StatusInternalServerError, "Failed to capture preview frame", err)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
