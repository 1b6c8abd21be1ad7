package server_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils"
	"go.viam.com/utils/testutils"

	"go.viam.com/waypointfollower/config"
	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/web"
	"go.viam.com/waypointfollower/web/server"
)

const simulatedConfig = `{
	"waypoints": {"rows": [[0, 0, 1], [1, 0, 1], [1, 1, 1]]},
	"arrival_tolerance_m": 0.2,
	"web": {"bind_address": "localhost:0"},
	"simulation": {"enabled": true, "speed_mps": 10, "update_period_ms": 50, "start": [0, 0, 1]},
	"log": [{"pattern": "vehicle", "level": "info"}]
}`

func readConfig(t *testing.T, logger logging.Logger, raw string) *config.Config {
	t.Helper()
	cfg, err := config.FromReader(context.Background(), "follower.json", strings.NewReader(raw), logger)
	test.That(t, err, test.ShouldBeNil)
	return cfg
}

func TestNewRequiresStore(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := server.New(&config.Config{}, clock.NewMock(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no loaded waypoints")
}

func TestServerFliesSimulation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := readConfig(t, logger, simulatedConfig)
	clk := clock.NewMock()

	srv, err := server.New(cfg, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, srv.Start(context.Background()), test.ShouldBeNil)
	defer func() {
		test.That(t, srv.Close(context.Background()), test.ShouldBeNil)
	}()

	vehicleLogger, ok := srv.Registry().LoggerNamed("vehicle")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, vehicleLogger.GetLevel(), test.ShouldEqual, logging.INFO)

	client := web.NewClient(srv.Address())
	defer client.Close()
	ctx := context.Background()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(50 * time.Millisecond)
		status, err := client.Status(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, status.HavePose, test.ShouldBeTrue)
		test.That(tb, status.PoseFeedLive, test.ShouldBeTrue)
	})

	res, err := client.PrepareFirstWaypoint(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)
	res, err = client.StartFollowing(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Success, test.ShouldBeTrue)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(50 * time.Millisecond)
		status, err := client.Status(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, status.CurrentIndex, test.ShouldEqual, 2)
		test.That(tb, status.SequenceComplete, test.ShouldBeTrue)
	})

	status := srv.Follower().Status()
	test.That(t, status.State, test.ShouldEqual, follower.StateFollowing)
	test.That(t, status.Pose, test.ShouldNotBeNil)
	test.That(t, status.Pose.Pose.Distance(cfg.Store.Get(2).Pose), test.ShouldBeLessThanOrEqualTo, 0.2)
}

func TestRunServerBadArguments(t *testing.T) {
	logger := logging.NewTestLogger(t)
	err := server.RunServer(context.Background(), []string{"waypoint-follower"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	err = server.RunServer(context.Background(), []string{"waypoint-follower", "/does/not/exist.json"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	err = server.RunServer(
		context.Background(),
		[]string{"waypoint-follower", "-env", filepath.Join(t.TempDir(), "missing.env"), "/does/not/exist.json"},
		logger,
	)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error loading env file")
}

func TestRunServerUntilCanceled(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()

	envPath := filepath.Join(dir, "follower.env")
	test.That(t, os.WriteFile(envPath, []byte("WAYPOINT_FOLLOWER_TEST_BIND=localhost:0\n"), 0o600), test.ShouldBeNil)
	t.Cleanup(func() {
		os.Unsetenv("WAYPOINT_FOLLOWER_TEST_BIND")
	})

	cfgPath := filepath.Join(dir, "follower.json")
	raw := `{
		"waypoints": {"rows": [[0, 0, 1]]},
		"arrival_tolerance_m": 0.5,
		"web": {"bind_address": "${WAYPOINT_FOLLOWER_TEST_BIND}"}
	}`
	test.That(t, os.WriteFile(cfgPath, []byte(raw), 0o600), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readyC := make(chan struct{}, 1)
	ctx = utils.ContextWithReadyFunc(ctx, readyC)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.RunServer(ctx, []string{"waypoint-follower", "-env", envPath, "-debug", cfgPath}, logger)
	}()

	select {
	case <-readyC:
	case err := <-errCh:
		t.Fatalf("server exited before ready: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server never became ready")
	}
	test.That(t, os.Getenv("WAYPOINT_FOLLOWER_TEST_BIND"), test.ShouldEqual, "localhost:0")
	cancel()
	select {
	case err := <-errCh:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
