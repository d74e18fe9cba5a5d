// Package osctest provides an in-process OSC camera for tests.
package osctest

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"

	"theta-panel/pkg/models"
)

const (
	Realm           = "RICOH THETA X"
	Nonce           = "6b1d4a0f2c"
	PreviewBoundary = "---osclivepreview---"
)

// Camera is a scripted OSC camera served by httptest.
type Camera struct {
	*httptest.Server

	// Username/Password, when set, put every endpoint behind Digest auth.
	Username string
	Password string

	// Statuses is consumed by successive /osc/commands/status calls; the last
	// entry repeats. Empty means "inProgress" forever.
	Statuses  []string
	FileURL   string
	CommandID string
	// OmitCommandID makes takePicture answer without an id.
	OmitCommandID bool

	Files  map[string][]byte
	Thumbs map[string][]byte

	Frames [][]byte
	// HoldPreview keeps the preview stream open after the last frame until
	// the client goes away.
	HoldPreview bool

	mu             sync.Mutex
	hits           map[string]int
	challenges     int
	statusCalls    int
	lastParameters json.RawMessage
	previewClosed  chan struct{}
}

func New(t testing.TB) *Camera {
	c := &Camera{
		CommandID:     "100",
		Files:         map[string][]byte{},
		Thumbs:        map[string][]byte{},
		hits:          map[string]int{},
		previewClosed: make(chan struct{}, 16),
	}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.Close)
	return c
}

// Config returns a camera profile pointing at this server.
func (c *Camera) Config() models.CameraConfig {
	host, port, _ := net.SplitHostPort(strings.TrimPrefix(c.URL, "http://"))
	p, _ := strconv.Atoi(port)
	cfg := models.DefaultCameraConfig()
	cfg.IP = host
	cfg.Port = p
	if c.Username != "" {
		cfg.Mode = models.ModeClient
		cfg.Username = c.Username
		cfg.Password = c.Password
	}
	return cfg
}

func (c *Camera) Hits(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

func (c *Camera) TotalHits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.hits {
		n += v
	}
	return n
}

// Challenges counts 401 digest challenges issued.
func (c *Camera) Challenges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challenges
}

func (c *Camera) StatusCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCalls
}

// LastParameters is the parameters object of the last executed command.
func (c *Camera) LastParameters() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastParameters
}

// PreviewClosed receives once per preview stream whose client went away.
func (c *Camera) PreviewClosed() <-chan struct{} {
	return c.previewClosed
}

func (c *Camera) serve(w http.ResponseWriter, r *http.Request) {
	if c.Username != "" && !c.authorized(r) {
		c.mu.Lock()
		c.challenges++
		c.mu.Unlock()
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth", algorithm=MD5, opaque="osc"`, Realm, Nonce))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	key := r.URL.Path
	if strings.HasPrefix(key, "/files/") {
		key = "/files/"
	}
	c.mu.Lock()
	c.hits[key]++
	c.mu.Unlock()

	switch {
	case r.URL.Path == "/osc/info" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"manufacturer":    "RICOH",
			"model":           "RICOH THETA X",
			"serialNumber":    "14010001",
			"firmwareVersion": "2.00.0",
			"api":             []string{"/osc/info", "/osc/state", "/osc/commands/execute", "/osc/commands/status"},
		})
	case r.URL.Path == "/osc/state" && r.Method == http.MethodPost:
		writeJSON(w, map[string]any{
			"fingerprint": "FIG_0001",
			"state":       map[string]any{"batteryLevel": 0.8, "_batteryState": "disconnect"},
		})
	case r.URL.Path == "/osc/commands/execute" && r.Method == http.MethodPost:
		c.execute(w, r)
	case r.URL.Path == "/osc/commands/status" && r.Method == http.MethodPost:
		c.status(w, r)
	case strings.HasPrefix(r.URL.Path, "/files/") && r.Method == http.MethodGet:
		c.file(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (c *Camera) execute(w http.ResponseWriter, r *http.Request) {
	var cmd struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.lastParameters = cmd.Parameters
	c.mu.Unlock()

	switch cmd.Name {
	case "camera.takePicture":
		resp := map[string]any{"name": cmd.Name, "state": models.StateInProgress}
		if !c.OmitCommandID {
			resp["id"] = c.CommandID
		}
		writeJSON(w, resp)
	case "camera.listFiles":
		writeJSON(w, map[string]any{
			"name":  cmd.Name,
			"state": models.StateDone,
			"results": map[string]any{
				"entries": []map[string]any{
					{"name": "R0010001.JPG", "fileUrl": c.URL + "/files/100RICOH/R0010001.JPG", "size": 4051440, "dateTimeZone": "2026:10:18 10:00:00+02:00"},
				},
				"totalEntries": 1,
			},
		})
	case "camera.getLivePreview":
		c.preview(w, r)
	default:
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{
			"name":  cmd.Name,
			"state": models.StateError,
			"error": map[string]string{"code": "unknownCommand", "message": "unknown command"},
		})
	}
}

func (c *Camera) status(w http.ResponseWriter, r *http.Request) {
	var req models.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	state := models.StateInProgress
	if len(c.Statuses) > 0 {
		i := c.statusCalls
		if i >= len(c.Statuses) {
			i = len(c.Statuses) - 1
		}
		state = c.Statuses[i]
	}
	c.statusCalls++
	c.mu.Unlock()

	resp := map[string]any{"name": "camera.takePicture", "id": req.ID, "state": state}
	switch state {
	case models.StateDone:
		var fileURL any
		if c.FileURL != "" {
			fileURL = c.FileURL
		}
		resp["results"] = map[string]any{"fileUrl": fileURL}
	case models.StateError:
		resp["error"] = map[string]string{"code": "cameraInExclusiveUse", "message": "camera busy"}
	}
	writeJSON(w, resp)
}

func (c *Camera) file(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	store := c.Files
	if r.URL.Query().Get("type") == "thumb" {
		store = c.Thumbs
	}
	data, ok := store[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (c *Camera) preview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", fmt.Sprintf(`multipart/x-mixed-replace; boundary="%s"`, PreviewBoundary))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(PreviewBoundary); err != nil {
		panic(err)
	}
	for _, frame := range c.Frames {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(frame))},
		})
		if err != nil {
			return
		}
		part.Write(frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if c.HoldPreview {
		<-r.Context().Done()
		c.previewClosed <- struct{}{}
		return
	}
	mw.Close()
}

func (c *Camera) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Digest ") {
		return false
	}
	params := parseDigest(auth[len("Digest "):])
	if params["username"] != c.Username || params["nonce"] != Nonce || params["realm"] != Realm {
		return false
	}
	ha1 := md5hex(fmt.Sprintf("%s:%s:%s", c.Username, Realm, c.Password))
	ha2 := md5hex(fmt.Sprintf("%s:%s", r.Method, params["uri"]))
	want := md5hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, Nonce, params["nc"], params["cnonce"], params["qop"], ha2))
	return params["response"] == want
}

func parseDigest(s string) map[string]string {
	out := map[string]string{}
	for _, field := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		out[k] = strings.Trim(v, `"`)
	}
	return out
}

func md5hex(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
