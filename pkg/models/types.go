package models

import (
	"encoding/json"
	"fmt"
)

const (
	ModeAccessPoint = "access_point"
	ModeClient      = "client"
)

// CameraConfig is the connection profile of the one camera the panel drives.
type CameraConfig struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Mode     string `json:"mode"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		IP:   "192.168.1.1",
		Port: 80,
		Mode: ModeAccessPoint,
	}
}

func (c CameraConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.IP, c.Port)
}

// UsesDigest reports whether requests must go through the digest handshake.
// Client mode with incomplete credentials falls back to plain access.
func (c CameraConfig) UsesDigest() bool {
	return c.Mode == ModeClient && c.Username != "" && c.Password != ""
}

// ConfigUpdate is a partial CameraConfig; nil fields are left untouched.
type ConfigUpdate struct {
	IP       *string `json:"ip"`
	Port     *int    `json:"port"`
	Mode     *string `json:"mode"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type ConfigResponse struct {
	Success bool         `json:"success"`
	Config  CameraConfig `json:"config"`
}

type TakePictureResponse struct {
	Success bool    `json:"success"`
	FileURL *string `json:"fileUrl"`
}

type ListFilesRequest struct {
	FileType      string `form:"fileType,default=all"`
	StartPosition int    `form:"startPosition,default=0"`
	EntryCount    int    `form:"entryCount,default=20"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// OSC wire types.

const (
	StateInProgress = "inProgress"
	StateDone       = "done"
	StateError      = "error"
)

type CommandRequest struct {
	Name       string `json:"name"`
	Parameters any    `json:"parameters,omitempty"`
}

type StatusRequest struct {
	ID string `json:"id"`
}

type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CommandStatus struct {
	Name     string          `json:"name,omitempty"`
	ID       string          `json:"id,omitempty"`
	State    string          `json:"state"`
	Results  json.RawMessage `json:"results,omitempty"`
	Error    *CommandError   `json:"error,omitempty"`
	Progress *struct {
		Completion float64 `json:"completion"`
	} `json:"progress,omitempty"`
}

type TakePictureResults struct {
	FileURL *string `json:"fileUrl"`
}

type ListFilesParameters struct {
	FileType      string `json:"fileType"`
	StartPosition int    `json:"startPosition"`
	EntryCount    int    `json:"entryCount"`
	MaxThumbSize  int    `json:"maxThumbSize"`
	Detail        bool   `json:"_detail"`
}
