package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/waypointfollower/logging"
)

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	raw := `{
		"waypoints": {"rows": [[0, 0, 1]]},
		"arrival_tolerance_m": 0.5,
		"log": [{"pattern": "vehicle", "level": "` + level + `"}]
	}`
	test.That(t, os.WriteFile(path, []byte(raw), 0o600), test.ShouldBeNil)
}

func TestWatchLogConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "follower.json")
	writeConfig(t, path, "info")

	registry := logging.NewRegistry(logging.INFO)
	vehicleLogger := registry.Sublogger(logger, "vehicle")
	test.That(t, vehicleLogger.GetLevel(), test.ShouldEqual, logging.INFO)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- watchLogConfig(ctx, path, registry, logger)
	}()

	// keep rewriting until the watcher has been registered and picks a write up.
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		writeConfig(t, path, "debug")
		time.Sleep(2 * reloadDelay)
		test.That(tb, vehicleLogger.GetLevel(), test.ShouldEqual, logging.DEBUG)
	})

	// an invalid config leaves the current levels alone.
	test.That(t, os.WriteFile(path, []byte(`{`), 0o600), test.ShouldBeNil)
	time.Sleep(3 * reloadDelay)
	test.That(t, vehicleLogger.GetLevel(), test.ShouldEqual, logging.DEBUG)

	cancel()
	select {
	case err := <-errCh:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchLogConfigMissingDir(t *testing.T) {
	logger := logging.NewTestLogger(t)
	err := watchLogConfig(
		context.Background(),
		filepath.Join(t.TempDir(), "gone", "follower.json"),
		logging.NewRegistry(logging.INFO),
		logger,
	)
	test.That(t, err, test.ShouldNotBeNil)
}
