package camera

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"theta-panel/pkg/models"
)

const (
	PathInfo  = "/osc/info"
	PathState = "/osc/state"
	PathFiles = "/files"

	CommandTakePicture    = "camera.takePicture"
	CommandListFiles      = "camera.listFiles"
	CommandGetLivePreview = "camera.getLivePreview"

	DefaultDownloadTimeout = 30 * time.Second
)

// Client exposes the OSC operations the panel offers.
type Client struct {
	caller          Caller
	poller          *Poller
	downloadTimeout time.Duration
}

type ClientOption func(*Client)

func WithDownloadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.downloadTimeout = d }
}

func NewClient(caller Caller, poller *Poller, opts ...ClientOption) *Client {
	c := &Client{
		caller:          caller,
		poller:          poller,
		downloadTimeout: DefaultDownloadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns the camera's /osc/info document verbatim.
func (c *Client) Info(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.caller.Call(ctx, http.MethodGet, PathInfo, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// State returns the camera's /osc/state document verbatim.
func (c *Client) State(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.caller.Call(ctx, http.MethodPost, PathState, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// TakePicture captures a still and waits for the camera to store it. The
// returned file URL is nil when the camera does not report one.
func (c *Client) TakePicture(ctx context.Context) (*string, error) {
	status, err := c.poller.Execute(ctx, models.CommandRequest{Name: CommandTakePicture})
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) {
			log.Warn().Err(err).Msg("capture did not complete")
		}
		switch {
		case errors.Is(err, ErrCommandTimeout):
			return nil, ErrCaptureTimeout
		case errors.Is(err, ErrCommandFailed):
			return nil, ErrCaptureFailed
		}
		return nil, err
	}

	var results models.TakePictureResults
	if len(status.Results) > 0 {
		if err := json.Unmarshal(status.Results, &results); err != nil {
			return nil, err
		}
	}
	return results.FileURL, nil
}

// ListFiles runs camera.listFiles and returns its results object verbatim.
func (c *Client) ListFiles(ctx context.Context, req models.ListFilesRequest) (json.RawMessage, error) {
	cmd := models.CommandRequest{
		Name: CommandListFiles,
		Parameters: models.ListFilesParameters{
			FileType:      req.FileType,
			StartPosition: req.StartPosition,
			EntryCount:    req.EntryCount,
		},
	}
	resp, err := c.caller.Call(ctx, http.MethodPost, PathExecute, cmd)
	if err != nil {
		return nil, err
	}
	var status models.CommandStatus
	if err := resp.JSON(&status); err != nil {
		return nil, err
	}
	if len(status.Results) == 0 {
		return json.RawMessage("null"), nil
	}
	return status.Results, nil
}

// OpenFile starts a download of a stored file or its thumbnail.
func (c *Client) OpenFile(ctx context.Context, file string, thumb bool) (*StreamResponse, error) {
	p := (&url.URL{Path: FilePath(file)}).EscapedPath()
	if thumb {
		p += "?type=thumb"
	}
	return c.caller.Stream(ctx, http.MethodGet, p, nil, c.downloadTimeout)
}

// OpenLivePreview starts the camera's MJPEG stream. It runs until ctx is
// cancelled or the body is closed.
func (c *Client) OpenLivePreview(ctx context.Context) (*StreamResponse, error) {
	return c.caller.Stream(ctx, http.MethodPost, PathExecute, models.CommandRequest{Name: CommandGetLivePreview}, 0)
}

// FilePath maps a file identifier into the camera's /files namespace. Full
// file URLs as reported by takePicture are reduced to their path first, and
// dot segments cannot climb out of /files.
func FilePath(file string) string {
	if u, err := url.Parse(file); err == nil && u.IsAbs() {
		file = strings.TrimPrefix(u.Path, PathFiles+"/")
	}
	return PathFiles + path.Clean("/"+file)
}
