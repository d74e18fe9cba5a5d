package camera_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-panel/internal/camera"
	"theta-panel/internal/osctest"
	"theta-panel/pkg/models"
)

func TestTransportPlain(t *testing.T) {
	cam := osctest.New(t)
	tr := camera.NewTransport(camera.NewStore(cam.Config()))

	resp, err := tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	var info map[string]any
	require.NoError(t, resp.JSON(&info))
	assert.Equal(t, "RICOH", info["manufacturer"])
	assert.Zero(t, cam.Challenges())
}

func TestTransportDigest(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "THETAYL00000001"
	cam.Password = "00000001"
	tr := camera.NewTransport(camera.NewStore(cam.Config()))

	resp, err := tr.Call(context.Background(), http.MethodPost, camera.PathState, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, cam.Challenges())
	assert.Equal(t, 1, cam.Hits(camera.PathState))
}

func TestTransportDigestBodyIsResent(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "user"
	cam.Password = "secret"
	tr := camera.NewTransport(camera.NewStore(cam.Config()))

	resp, err := tr.Call(context.Background(), http.MethodPost, camera.PathExecute,
		models.CommandRequest{Name: camera.CommandTakePicture})
	require.NoError(t, err)

	var status models.CommandStatus
	require.NoError(t, resp.JSON(&status))
	assert.Equal(t, "100", status.ID)
}

func TestTransportWrongPasswordFails(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "user"
	cam.Password = "secret"
	cfg := cam.Config()
	cfg.Password = "wrong"
	tr := camera.NewTransport(camera.NewStore(cfg))

	_, err := tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	require.Error(t, err)

	var te *camera.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Contains(t, err.Error(), "request failed with status code 401")
}

func TestTransportClientModeWithoutPasswordSkipsDigest(t *testing.T) {
	cam := osctest.New(t)
	cfg := cam.Config()
	cfg.Mode = models.ModeClient
	cfg.Username = "user"
	tr := camera.NewTransport(camera.NewStore(cfg))

	_, err := tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	require.NoError(t, err)
	assert.Zero(t, cam.Challenges())
}

func TestTransportFollowsStoreUpdates(t *testing.T) {
	first := osctest.New(t)
	second := osctest.New(t)
	store := camera.NewStore(first.Config())
	tr := camera.NewTransport(store)

	_, err := tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	require.NoError(t, err)

	next := second.Config()
	store.Update(models.ConfigUpdate{IP: &next.IP, Port: &next.Port})
	_, err = tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Hits(camera.PathInfo))
	assert.Equal(t, 1, second.Hits(camera.PathInfo))
}

func TestTransportUnreachable(t *testing.T) {
	cfg := models.CameraConfig{IP: "127.0.0.1", Port: 1, Mode: models.ModeAccessPoint}
	tr := camera.NewTransport(camera.NewStore(cfg), camera.WithRequestTimeout(time.Second))

	_, err := tr.Call(context.Background(), http.MethodGet, camera.PathInfo, nil)
	var te *camera.TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.Status)
	assert.Error(t, te.Err)
}

func TestTransportStream(t *testing.T) {
	cam := osctest.New(t)
	cam.Username = "user"
	cam.Password = "secret"
	cam.Files["100RICOH/R0010001.JPG"] = []byte("jpeg-bytes")
	tr := camera.NewTransport(camera.NewStore(cam.Config()))

	resp, err := tr.Stream(context.Background(), http.MethodGet, "/files/100RICOH/R0010001.JPG", nil, 5*time.Second)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.EqualValues(t, len("jpeg-bytes"), resp.ContentLength)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestTransportStreamNotFound(t *testing.T) {
	cam := osctest.New(t)
	tr := camera.NewTransport(camera.NewStore(cam.Config()))

	_, err := tr.Stream(context.Background(), http.MethodGet, "/files/missing.JPG", nil, 5*time.Second)
	var te *camera.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.Status)
}
