package client

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

// Result is the partial result served while a sweep runs.
type Result struct {
	RunID  string                   `json:"runId"`
	Phase  calibration.Phase        `json:"phase"`
	Points []calibration.SweepPoint `json:"points"`
}

// VersionInfo identifies the build of the scanner serving the monitor.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (c *Client) GetStatus() (*calibration.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get sweep status")
	}

	var st calibration.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal sweep status")
	}
	return &st, nil
}

func (c *Client) GetResult() (*Result, error) {
	ret, err := c.Get("/result")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get partial result")
	}

	var res Result
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal partial result")
	}
	return &res, nil
}

func (c *Client) GetVersion() (*VersionInfo, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get version")
	}

	var v VersionInfo
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return &v, nil
}
