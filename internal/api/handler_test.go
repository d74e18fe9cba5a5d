package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-panel/internal/camera"
	"theta-panel/internal/metrics"
	"theta-panel/internal/osctest"
	"theta-panel/internal/relay"
	"theta-panel/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type panel struct {
	router  *gin.Engine
	store   *camera.Store
	metrics *metrics.Metrics
}

func newPanel(t *testing.T, cfg models.CameraConfig) *panel {
	t.Helper()
	store := camera.NewStore(cfg)
	m := metrics.New(store)
	tr := camera.NewTransport(store, camera.WithRequestTimeout(2*time.Second))
	poller := camera.NewPoller(tr,
		camera.WithPollInterval(time.Millisecond),
		camera.WithPollAttempts(5),
		camera.WithObserver(m.ObserveCommand),
	)
	h := NewHandler(store, camera.NewClient(tr, poller), relay.New(m))
	r, err := NewRouter(h, RouterOptions{CORSOrigins: []string{"*"}, Metrics: m})
	require.NoError(t, err)
	return &panel{router: r, store: store, metrics: m}
}

func (p *panel) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	p.router.ServeHTTP(rec, req)
	return rec
}

func TestGetConfigDefaults(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())

	rec := p.do(http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"192.168.1.1","port":80,"mode":"access_point","username":"","password":""}`, rec.Body.String())
}

func TestUpdateConfigPartial(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())

	rec := p.do(http.MethodPost, "/api/config", `{"ip":"10.0.0.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"config":{"ip":"10.0.0.5","port":80,"mode":"access_point","username":"","password":""}}`,
		rec.Body.String())

	rec = p.do(http.MethodGet, "/api/config", "")
	assert.Contains(t, rec.Body.String(), `"ip":"10.0.0.5"`)
}

func TestUpdateConfigEmptyBodyKeepsProfile(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())

	rec := p.do(http.MethodPost, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DefaultCameraConfig(), p.store.Get())
}

func TestUpdateConfigInvalidJSON(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())

	rec := p.do(http.MethodPost, "/api/config", `{"port":"eighty"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid request", resp.Error)
	assert.NotEmpty(t, resp.Details)
}

func TestUpdateConfigRetargetsCamera(t *testing.T) {
	first := osctest.New(t)
	second := osctest.New(t)
	p := newPanel(t, first.Config())

	next := second.Config()
	body, _ := json.Marshal(map[string]any{"ip": next.IP, "port": next.Port})
	require.Equal(t, http.StatusOK, p.do(http.MethodPost, "/api/config", string(body)).Code)

	require.Equal(t, http.StatusOK, p.do(http.MethodGet, "/api/camera/info", "").Code)
	assert.Zero(t, first.Hits(camera.PathInfo))
	assert.Equal(t, 1, second.Hits(camera.PathInfo))
}

func TestCameraInfo(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"manufacturer":"RICOH"`)
}

func TestCameraInfoUnreachable(t *testing.T) {
	p := newPanel(t, models.CameraConfig{IP: "127.0.0.1", Port: 1, Mode: models.ModeAccessPoint})

	rec := p.do(http.MethodGet, "/api/camera/info", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to get camera info", resp.Error)
	assert.NotEmpty(t, resp.Details)
}

func TestCameraState(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"batteryLevel":0.8`)
}

func TestTakePictureDigest(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "THETAYL00000001"
	cam.Password = "00000001"
	cam.Statuses = []string{"inProgress", "inProgress", "done"}
	cam.FileURL = "100RICOH/R0010001.JPG"
	p := newPanel(t, models.DefaultCameraConfig())

	target := cam.Config()
	body, _ := json.Marshal(map[string]any{
		"mode":     "client",
		"username": "THETAYL00000001",
		"password": "00000001",
		"ip":       target.IP,
		"port":     target.Port,
	})
	require.Equal(t, http.StatusOK, p.do(http.MethodPost, "/api/config", string(body)).Code)
	require.True(t, p.store.Get().UsesDigest())

	rec := p.do(http.MethodPost, "/api/camera/take-picture", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"fileUrl":"100RICOH/R0010001.JPG"}`, rec.Body.String())
	assert.Equal(t, 3, cam.StatusCalls())
	assert.Equal(t, 4, cam.Challenges())

	metricsRec := p.do(http.MethodGet, "/metrics", "")
	assert.Contains(t, metricsRec.Body.String(), `theta_panel_commands_total{command="camera.takePicture",outcome="completed"} 1`)
}

func TestTakePictureNullFileURL(t *testing.T) {
	cam := osctest.New(t)
	cam.Statuses = []string{"done"}
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodPost, "/api/camera/take-picture", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"fileUrl":null}`, rec.Body.String())
}

func TestTakePictureTimeout(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodPost, "/api/camera/take-picture", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to take picture","details":"picture capture timed out"}`, rec.Body.String())
	assert.Equal(t, 5, cam.StatusCalls())
}

func TestTakePictureFailed(t *testing.T) {
	cam := osctest.New(t)
	cam.Statuses = []string{"error"}
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodPost, "/api/camera/take-picture", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to take picture","details":"picture capture failed"}`, rec.Body.String())
}

func TestListFilesDefaults(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalEntries":1`)
	assert.JSONEq(t,
		`{"fileType":"all","startPosition":0,"entryCount":20,"maxThumbSize":0,"_detail":false}`,
		string(cam.LastParameters()))
}

func TestListFilesQuery(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/files?fileType=image&startPosition=10&entryCount=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"fileType":"image","startPosition":10,"entryCount":5,"maxThumbSize":0,"_detail":false}`,
		string(cam.LastParameters()))
}

func TestListFilesInvalidQuery(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/files?entryCount=lots", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Invalid request"`)
	assert.Zero(t, cam.TotalHits())
}

func TestDownloadMissingPath(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "user"
	cam.Password = "secret"
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/download", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"File path is required"}`, rec.Body.String())
	assert.Zero(t, cam.TotalHits())
	assert.Zero(t, cam.Challenges())
}

func TestDownload(t *testing.T) {
	cam := osctest.New(t)
	cam.Files["100RICOH/R0010001.JPG"] = []byte("full-image")
	cam.Thumbs["100RICOH/R0010001.JPG"] = []byte("thumb")
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/download?path=100RICOH/R0010001.JPG", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "full-image", rec.Body.String())

	rec = p.do(http.MethodGet, "/api/camera/download?path=100RICOH/R0010001.JPG&thumb=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thumb", rec.Body.String())

	rec = p.do(http.MethodGet, "/api/camera/download?path=100RICOH/R0010001.JPG&thumb=yes", "")
	assert.Equal(t, "full-image", rec.Body.String())
}

func TestDownloadMissingFile(t *testing.T) {
	cam := osctest.New(t)
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/download?path=100RICOH/NOPE.JPG", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Failed to download file"`)
	assert.Contains(t, rec.Body.String(), "status code 404")
}

func TestPreviewUnreachable(t *testing.T) {
	p := newPanel(t, models.CameraConfig{IP: "127.0.0.1", Port: 1, Mode: models.ModeAccessPoint})

	for _, path := range []string{"/api/camera/preview", "/api/camera/preview/ws"} {
		rec := p.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"error":"Failed to start live preview"`, path)
	}
}

func TestSnapshotRoute(t *testing.T) {
	cam := osctest.New(t)
	cam.Frames = [][]byte{[]byte("jpeg-a"), []byte("jpeg-b")}
	p := newPanel(t, cam.Config())

	rec := p.do(http.MethodGet, "/api/camera/preview/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-a", rec.Body.String())
}

func TestHealthAndUI(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())

	rec := p.do(http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = p.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "THETA Control Panel")

	rec = p.do(http.MethodGet, "/static/app.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/camera/download?")
}

func TestResponsesCarryRequestID(t *testing.T) {
	p := newPanel(t, models.DefaultCameraConfig())
	rec := p.do(http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
