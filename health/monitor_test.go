package health

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/waypointfollower/logging"
)

func TestMonitorLiveness(t *testing.T) {
	clk := clock.NewMock()
	logger, logs := logging.NewObservedTestLogger(t)
	m := NewMonitor(clk, time.Second, time.Millisecond, logger, StreamVehiclePose)

	t.Run("never updated is not live", func(t *testing.T) {
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeFalse)
		test.That(t, m.HasReceived(StreamVehiclePose), test.ShouldBeFalse)
		test.That(t, m.Check(), test.ShouldResemble, []string{StreamVehiclePose})
		test.That(t, logs.FilterMessage("waiting for first update on input stream").Len(), test.ShouldEqual, 1)
	})

	t.Run("fresh update is live", func(t *testing.T) {
		m.Touch(StreamVehiclePose, clk.Now())
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeTrue)
		test.That(t, m.Check(), test.ShouldBeEmpty)
		test.That(t, logs.FilterMessage("input stream is live").Len(), test.ShouldEqual, 1)
	})

	t.Run("age equal to threshold is still live", func(t *testing.T) {
		clk.Add(time.Second)
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeTrue)
		test.That(t, m.Check(), test.ShouldBeEmpty)
	})

	t.Run("age beyond threshold is stale", func(t *testing.T) {
		clk.Add(time.Millisecond)
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeFalse)
		test.That(t, m.Check(), test.ShouldResemble, []string{StreamVehiclePose})
		test.That(t, logs.FilterMessage("input stream is stale").Len(), test.ShouldEqual, 1)

		statuses := m.Statuses()
		test.That(t, statuses, test.ShouldHaveLength, 1)
		test.That(t, statuses[0].Live, test.ShouldBeFalse)
		test.That(t, statuses[0].Age, test.ShouldEqual, time.Second+time.Millisecond)
	})

	t.Run("recovers on fresh update", func(t *testing.T) {
		m.Touch(StreamVehiclePose, clk.Now())
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeTrue)
		test.That(t, logs.FilterMessage("input stream is live").Len(), test.ShouldEqual, 2)
	})

	t.Run("stale timestamps do not revive", func(t *testing.T) {
		clk.Add(5 * time.Second)
		m.Touch(StreamVehiclePose, clk.Now().Add(-2*time.Second))
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeFalse)
	})

	t.Run("out of order timestamps are ignored", func(t *testing.T) {
		now := clk.Now()
		m.Touch(StreamVehiclePose, now)
		m.Touch(StreamVehiclePose, now.Add(-10*time.Second))
		test.That(t, m.Statuses()[0].LastUpdate, test.ShouldEqual, now)
	})

	t.Run("future timestamps are recorded as now", func(t *testing.T) {
		now := clk.Now()
		m.Touch(StreamVehiclePose, now.Add(time.Hour))
		test.That(t, m.Statuses()[0].LastUpdate, test.ShouldEqual, now)
		clk.Add(time.Second + time.Millisecond)
		test.That(t, m.IsLive(StreamVehiclePose), test.ShouldBeFalse)
	})
}

func TestMonitorWarningsAreRateLimited(t *testing.T) {
	clk := clock.NewMock()
	logger, logs := logging.NewObservedTestLogger(t)
	m := NewMonitor(clk, 100*time.Millisecond, 5*time.Second, logger, StreamVehiclePose)

	m.Touch(StreamVehiclePose, clk.Now())
	clk.Add(time.Second)
	for i := 0; i < 40; i++ {
		m.Check()
		clk.Add(100 * time.Millisecond)
	}
	// 4 seconds of checks fit inside one warning interval.
	test.That(t, logs.FilterMessage("input stream is stale").Len(), test.ShouldEqual, 1)

	clk.Add(2 * time.Second)
	m.Check()
	test.That(t, logs.FilterMessage("input stream is stale").Len(), test.ShouldEqual, 2)
}

func TestMonitorMultipleStreams(t *testing.T) {
	clk := clock.NewMock()
	m := NewMonitor(clk, time.Second, 0, logging.NewTestLogger(t), "b", "a")

	m.Touch("b", clk.Now())
	test.That(t, m.Check(), test.ShouldResemble, []string{"a"})

	m.Touch("c", clk.Now())
	statuses := m.Statuses()
	test.That(t, statuses, test.ShouldHaveLength, 3)
	test.That(t, statuses[0].Name, test.ShouldEqual, "a")
	test.That(t, statuses[0].Age, test.ShouldEqual, time.Duration(0))
	test.That(t, statuses[1].Live, test.ShouldBeTrue)
	test.That(t, statuses[2].Name, test.ShouldEqual, "c")
	test.That(t, m.Threshold(), test.ShouldEqual, time.Second)
}
