// Package relay copies camera streams to panel clients. Every relay owns the
// upstream body it is handed and closes it exactly once, whether the camera
// finishes, the client goes away, or the copy fails.
package relay

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"theta-panel/internal/camera"
	"theta-panel/internal/metrics"
	"theta-panel/utils"
)

const (
	PreviewBoundary    = "---osclivepreview---"
	PreviewContentType = `multipart/x-mixed-replace; boundary="` + PreviewBoundary + `"`

	KindFile     = "file"
	KindPreview  = "preview"
	KindWS       = "preview_ws"
	KindSnapshot = "snapshot"

	chunkSize = 32 * 1024
)

type Relay struct {
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func New(m *metrics.Metrics) *Relay {
	return &Relay{
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// upstream guards a camera body against double close.
type upstream struct {
	body io.ReadCloser
	once sync.Once
}

func (u *upstream) Read(p []byte) (int, error) { return u.body.Read(p) }

func (u *upstream) Close() error {
	var err error
	u.once.Do(func() { err = u.body.Close() })
	return err
}

// attach ties the upstream's lifetime to the client request. The returned
// release must be called once the relay is done.
func attach(ctx context.Context, body io.ReadCloser) (*upstream, func()) {
	u := &upstream{body: body}
	stop := context.AfterFunc(ctx, func() { u.Close() })
	return u, func() {
		stop()
		u.Close()
	}
}

// File streams a stored file. Headers come from the camera.
func (rl *Relay) File(w http.ResponseWriter, r *http.Request, resp *camera.StreamResponse) {
	src, release := attach(r.Context(), resp.Body)
	defer release()
	defer rl.metrics.StreamOpened(KindFile)()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := pump(w, src)
	rl.metrics.AddRelayed(KindFile, n)
	logger := log.With().Str("path", r.URL.Query().Get("path")).Str("size", utils.FormatFileSize(n)).Logger()
	if err != nil && !isClientGone(r, err) {
		logger.Warn().Err(err).Msg("file relay interrupted")
		return
	}
	logger.Debug().Msg("file relayed")
}

// Preview forwards the live MJPEG stream until either side stops.
func (rl *Relay) Preview(w http.ResponseWriter, r *http.Request, resp *camera.StreamResponse) {
	src, release := attach(r.Context(), resp.Body)
	defer release()
	defer rl.metrics.StreamOpened(KindPreview)()

	w.Header().Set("Content-Type", previewContentType(resp.Header))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	n, err := pump(w, src)
	rl.metrics.AddRelayed(KindPreview, n)
	if err != nil && !isClientGone(r, err) {
		log.Warn().Err(err).Str("relayed", utils.FormatFileSize(n)).Msg("preview relay ended")
		return
	}
	log.Debug().Str("relayed", utils.FormatFileSize(n)).Msg("preview client left")
}

// pump copies src to w, flushing after every chunk so frames are not held
// back by buffering.
func pump(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chunkSize)
	var total int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, rerr
		}
	}
}

func previewContentType(h http.Header) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}
	return PreviewContentType
}

// previewBoundary extracts the multipart boundary the camera announced.
func previewBoundary(h http.Header) string {
	_, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		return PreviewBoundary
	}
	return params["boundary"]
}

func isClientGone(r *http.Request, err error) bool {
	return r.Context().Err() != nil || errors.Is(err, context.Canceled)
}
