package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/health"
	"go.viam.com/waypointfollower/spatialmath"
)

// Client talks to a follower Service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the service at address, either a URL or a host:port.
func NewClient(address string) *Client {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &Client{
		baseURL:    strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	if out == nil {
		if resp.StatusCode >= http.StatusBadRequest {
			msg, _ := io.ReadAll(resp.Body) //nolint:errcheck
			return resp.StatusCode, errors.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
		}
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.Wrapf(err, "%s %s: failed to decode response (%s)", method, path, resp.Status)
	}
	return resp.StatusCode, nil
}

// Command sends an operator command. A rejected command is not an error: the result carries
// Success false and the reason.
func (c *Client) Command(ctx context.Context, cmd follower.Command) (follower.CommandResult, error) {
	var path string
	switch cmd {
	case follower.CommandPrepareFirstWaypoint:
		path = PathPrepare
	case follower.CommandStartFollowing:
		path = PathStart
	case follower.CommandStopFollowing:
		path = PathStop
	default:
		return follower.CommandResult{}, fmt.Errorf("unknown command %d", int(cmd))
	}
	var result follower.CommandResult
	if _, err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return follower.CommandResult{}, err
	}
	return result, nil
}

// PrepareFirstWaypoint sends the prepare command.
func (c *Client) PrepareFirstWaypoint(ctx context.Context) (follower.CommandResult, error) {
	return c.Command(ctx, follower.CommandPrepareFirstWaypoint)
}

// StartFollowing sends the start command.
func (c *Client) StartFollowing(ctx context.Context) (follower.CommandResult, error) {
	return c.Command(ctx, follower.CommandStartFollowing)
}

// StopFollowing sends the stop command.
func (c *Client) StopFollowing(ctx context.Context) (follower.CommandResult, error) {
	return c.Command(ctx, follower.CommandStopFollowing)
}

// Status fetches the follower status.
func (c *Client) Status(ctx context.Context) (follower.Status, error) {
	var status follower.Status
	_, err := c.do(ctx, http.MethodGet, PathStatus, nil, &status)
	return status, err
}

// Health fetches the input stream statuses.
func (c *Client) Health(ctx context.Context) ([]health.StreamStatus, error) {
	var statuses []health.StreamStatus
	_, err := c.do(ctx, http.MethodGet, PathHealth, nil, &statuses)
	return statuses, err
}

// SendPose reports a vehicle pose.
func (c *Client) SendPose(ctx context.Context, pose spatialmath.Pose) error {
	_, err := c.do(ctx, http.MethodPost, PathPose, PoseMessage{Pose: pose.Slice()}, nil)
	return err
}

// Close releases idle connections to the service.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
