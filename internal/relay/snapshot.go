package relay

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mattn/go-mjpeg"

	"theta-panel/internal/camera"
)

// Snapshot answers with the first frame of the preview stream and drops the
// rest. Nothing is written when no frame could be read, so the caller can
// still report the error.
func (rl *Relay) Snapshot(w http.ResponseWriter, r *http.Request, resp *camera.StreamResponse) error {
	src, release := attach(r.Context(), resp.Body)
	defer release()

	frame, err := mjpeg.NewDecoder(src, previewBoundary(resp.Header)).DecodeRaw()
	if err != nil {
		return fmt.Errorf("read preview frame: %w", err)
	}
	release()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	n, _ := w.Write(frame)
	rl.metrics.AddRelayed(KindSnapshot, int64(n))
	return nil
}
