package cli

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/health"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
	"go.viam.com/waypointfollower/waypoint"
	"go.viam.com/waypointfollower/web"
)

type followerService struct {
	address string
	f       *follower.Follower
}

func newFollowerService(t *testing.T) *followerService {
	t.Helper()
	logger := logging.NewTestLogger(t)
	clk := clock.NewMock()
	store, err := waypoint.NewStore([][]float64{{0, 0, 2}, {5, 0, 2}}, 0, nil)
	test.That(t, err, test.ShouldBeNil)
	monitor := health.NewMonitor(clk, time.Second, 0, logger, health.StreamVehiclePose)
	hub := web.NewGoalHub(logger)
	f, err := follower.New(
		follower.Config{ArrivalTolerance: 0.5, TickPeriod: 100 * time.Millisecond},
		store, monitor, hub, clk, logger,
	)
	test.That(t, err, test.ShouldBeNil)

	svc := web.New(f, monitor, hub, logger)
	test.That(t, svc.Start(context.Background(), web.Options{BindAddress: "localhost:0"}), test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, svc.Close(context.Background()), test.ShouldBeNil)
		test.That(t, f.Close(context.Background()), test.ShouldBeNil)
	})
	return &followerService{address: svc.Address(), f: f}
}

func (s *followerService) poseAt(t *testing.T, x, y, z float64) {
	t.Helper()
	s.f.UpdatePose(follower.VehiclePose{Pose: spatialmath.NewPose(r3.Vector{X: x, Y: y, Z: z})})
}

func run(address string, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app := NewApp(out, errOut)
	err := app.Run(append([]string{"followerctl", "--no-color", "--address", address}, args...))
	return out.String(), errOut.String(), err
}

func TestCommands(t *testing.T) {
	address := newFollowerService(t).address

	out, _, err := run(address, "status")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "idle")
	test.That(t, out, test.ShouldContainSubstring, "vehicle pose feed is not live")

	_, errOut, err := run(address, "prepare")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "prepare_first_waypoint rejected")
	test.That(t, errOut, test.ShouldContainSubstring, "no vehicle pose received yet")

	out, _, err = run(address, "pose", "0", "0", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "sent")

	out, _, err = run(address, "prepare")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "flying to the first waypoint")

	out, _, err = run(address, "start")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "following waypoints")

	out, _, err = run(address, "status")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "following")
	test.That(t, out, test.ShouldContainSubstring, "0 of 2")
	test.That(t, out, test.ShouldNotContainSubstring, "not live")

	out, _, err = run(address, "health")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, health.StreamVehiclePose)
	test.That(t, out, test.ShouldContainSubstring, "Less than a second ago")

	out, _, err = run(address, "stop")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "waypoint following stopped")
}

func TestPoseArguments(t *testing.T) {
	address := newFollowerService(t).address

	_, _, err := run(address, "pose", "1", "2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "got 2 arguments")

	_, _, err = run(address, "pose", "1", "two", "3")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `invalid coordinate "two"`)

	out, _, err := run(address, "pose", "1", "2", "3", "0.5")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "sent")
}

func TestUnreachable(t *testing.T) {
	_, _, err := run("localhost:1", "status")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStatusTable(t *testing.T) {
	out := statusTable(follower.Status{State: follower.StateIdle, CurrentIndex: -1, WaypointCount: 3})
	test.That(t, out, test.ShouldContainSubstring, "idle")
	test.That(t, out, test.ShouldContainSubstring, "none")
	test.That(t, out, test.ShouldNotContainSubstring, "of 3")
}

func TestWait(t *testing.T) {
	ctx := context.Background()

	t.Run("sequence complete", func(t *testing.T) {
		svc := newFollowerService(t)
		svc.poseAt(t, 0, 0, 2)
		test.That(t, svc.f.PrepareFirstWaypoint(ctx), test.ShouldBeNil)
		test.That(t, svc.f.StartFollowing(ctx), test.ShouldBeNil)
		svc.f.Tick(ctx)
		svc.poseAt(t, 5, 0, 2)
		svc.f.Tick(ctx)

		out, _, err := run(svc.address, "wait", "--interval", "10ms")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "sequence complete at waypoint 1 of 2")
	})

	t.Run("stopped", func(t *testing.T) {
		svc := newFollowerService(t)
		svc.poseAt(t, 0, 0, 2)
		test.That(t, svc.f.PrepareFirstWaypoint(ctx), test.ShouldBeNil)
		test.That(t, svc.f.StopFollowing(ctx), test.ShouldBeNil)

		out, _, err := run(svc.address, "wait", "--interval", "10ms")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "stopped before completing")
		test.That(t, out, test.ShouldContainSubstring, "stopped, waypoint 0 of 2")
	})

	t.Run("timeout", func(t *testing.T) {
		svc := newFollowerService(t)
		out, _, err := run(svc.address, "wait", "--timeout", "50ms", "--interval", "10ms")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "timed out")
		test.That(t, out, test.ShouldContainSubstring, "follower is idle")
	})
}

type recordingSpinner struct {
	texts []string
	done  string
}

func (s *recordingSpinner) Success(msg ...any) { s.done = "success" }

func (s *recordingSpinner) Fail(msg ...any) { s.done = "fail" }

func (s *recordingSpinner) UpdateText(text string) { s.texts = append(s.texts, text) }

func TestNewProgress(t *testing.T) {
	var buf bytes.Buffer
	p, err := newProgress(&buf, true, "waiting")
	test.That(t, err, test.ShouldBeNil)
	p.UpdateText("waiting")
	p.UpdateText("following, waypoint 0 of 2")
	p.Success("done")
	test.That(t, buf.String(), test.ShouldStartWith, "waiting\nfollowing, waypoint 0 of 2\n")
	test.That(t, buf.String(), test.ShouldContainSubstring, "done")

	recorder := &recordingSpinner{}
	defer func(orig progressSpinnerFactory) { spinnerFactory = orig }(spinnerFactory)
	defer func(orig func(*os.File) bool) { isTerminal = orig }(isTerminal)
	isTerminal = func(*os.File) bool { return true }
	spinnerFactory = func(text string) (progressSpinner, error) {
		recorder.texts = append(recorder.texts, text)
		return recorder, nil
	}
	p, err = newProgress(os.Stdout, true, "waiting")
	test.That(t, err, test.ShouldBeNil)
	p.Fail("gone")
	test.That(t, recorder.texts, test.ShouldResemble, []string{"waiting"})
	test.That(t, recorder.done, test.ShouldEqual, "fail")

	p, err = newProgress(os.Stdout, false, "plain")
	test.That(t, err, test.ShouldBeNil)
	_, ok := p.(*lineProgress)
	test.That(t, ok, test.ShouldBeTrue)
}
