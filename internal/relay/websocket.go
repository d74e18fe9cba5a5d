package relay

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mattn/go-mjpeg"
	"github.com/rs/zerolog/log"

	"theta-panel/internal/camera"
)

// WebSocket upgrades the request and sends every preview frame as one binary
// message. The upstream is closed as soon as the client stops reading.
func (rl *Relay) WebSocket(w http.ResponseWriter, r *http.Request, resp *camera.StreamResponse) {
	src, release := attach(r.Context(), resp.Body)
	defer release()

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer rl.metrics.StreamOpened(KindWS)()

	logger := log.With().Str("remote", r.RemoteAddr).Logger()
	logger.Info().Msg("websocket preview client connected")

	// Clients never send anything useful; a read error means they left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				src.Close()
				return
			}
		}
	}()

	dec := mjpeg.NewDecoder(src, previewBoundary(resp.Header))
	frames := 0
	for {
		frame, err := dec.DecodeRaw()
		if err != nil {
			if !errors.Is(err, io.EOF) && frames == 0 {
				logger.Warn().Err(err).Msg("preview stream unreadable")
			}
			break
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			break
		}
		frames++
		rl.metrics.AddRelayed(KindWS, int64(len(frame)))
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	logger.Info().Int("frames", frames).Msg("websocket preview client disconnected")
}
