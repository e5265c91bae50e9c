package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/powerlab/wattlog/pkg/capture"
	"github.com/powerlab/wattlog/pkg/config"
	"github.com/powerlab/wattlog/pkg/probe"
	"github.com/powerlab/wattlog/pkg/types"
)

// StartOptions are per-session overrides for Start. Zero values defer to
// the daemon's configuration.
type StartOptions struct {
	WindowSeconds int `json:"windowSeconds,omitempty"`
	MaxWindows    int `json:"maxWindows,omitempty"`
}

func (c *Client) Start(opts StartOptions) (*capture.Status, error) {
	payload, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/start", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to start capture")
	}

	var st capture.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal capture status")
	}
	return &st, nil
}

func (c *Client) Stop() (*capture.Status, error) {
	ret, err := c.Post("/stop", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to stop capture")
	}

	var st capture.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal capture status")
	}
	return &st, nil
}

func (c *Client) GetStatus() (*capture.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get capture status")
	}

	var st capture.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal capture status")
	}
	return &st, nil
}

func (c *Client) GetSnapshot() ([]types.Sample, error) {
	ret, err := c.Get("/snapshot")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get ring buffer snapshot")
	}

	var samples []types.Sample
	if err := json.Unmarshal([]byte(ret), &samples); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal snapshot")
	}
	return samples, nil
}

func (c *Client) GetWindows() ([]capture.Meta, error) {
	ret, err := c.Get("/windows")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get sealed windows")
	}

	var metas []capture.Meta
	if err := json.Unmarshal([]byte(ret), &metas); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal sealed windows")
	}
	return metas, nil
}

func (c *Client) Reseal() ([]capture.Meta, error) {
	ret, err := c.Post("/reseal", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to reseal windows")
	}

	var metas []capture.Meta
	if err := json.Unmarshal([]byte(ret), &metas); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal resealed windows")
	}
	return metas, nil
}

// FileInfo describes one sealed CSV file in the daemon's log directory.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

func (c *Client) GetFiles() ([]FileInfo, error) {
	ret, err := c.Get("/files")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list window files")
	}

	var files []FileInfo
	if err := json.Unmarshal([]byte(ret), &files); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal window files")
	}
	return files, nil
}

func (c *Client) GetDevices() ([]probe.Info, error) {
	ret, err := c.Get("/devices")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list probes")
	}

	var devices []probe.Info
	if err := json.Unmarshal([]byte(ret), &devices); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal probe list")
	}
	return devices, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) SetWindowSeconds(w int) (string, error) {
	return c.Put("/window-seconds", strconv.Itoa(w))
}

// ScheduleInfo reports the daemon's capture schedule.
type ScheduleInfo struct {
	Cron    string    `json:"cron,omitempty"`
	NextRun time.Time `json:"nextRun"`
}

func (c *Client) SetSchedule(cronExpr string) (string, error) {
	payload, err := json.Marshal(cronExpr)
	if err != nil {
		return "", err
	}
	return c.Put("/schedule", string(payload))
}

func (c *Client) GetSchedule() (*ScheduleInfo, error) {
	ret, err := c.Get("/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedule")
	}

	var info ScheduleInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal schedule")
	}
	return &info, nil
}

func (c *Client) ClearSchedule() (string, error) {
	return c.Delete("/schedule")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return v, nil
}
