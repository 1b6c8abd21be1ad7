// Package telemetry records emitted goals and vehicle poses to a time series store.
package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
)

// Measurement names.
const (
	MeasurementGoal = "waypoint_goal"
	MeasurementPose = "vehicle_pose"
)

// Sample is one point of telemetry.
type Sample struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time
}

// Writer stores samples. Write must not block.
type Writer interface {
	Write(s Sample)
	Close() error
}

// StatusSource is polled for vehicle poses.
type StatusSource interface {
	Status() follower.Status
}

// Recorder turns goals and poses into samples. Every sample is tagged with a session id unique
// to the recorder. It is a follower.GoalConsumer.
type Recorder struct {
	writer  Writer
	session string
	clock   clock.Clock
	logger  logging.Logger

	mu       sync.Mutex
	lastPose time.Time
	workers  *utils.StoppableWorkers
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w Writer, clk clock.Clock, logger logging.Logger) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	r := &Recorder{
		writer:  w,
		session: uuid.NewString(),
		clock:   clk,
		logger:  logger,
	}
	logger.Infow("recording telemetry", "session", r.session)
	return r
}

// Session returns the session tag.
func (r *Recorder) Session() string {
	return r.session
}

func poseFields(p spatialmath.Pose) map[string]interface{} {
	fields := map[string]interface{}{
		"x": p.Point.X,
		"y": p.Point.Y,
		"z": p.Point.Z,
	}
	if p.HasHeading {
		fields["heading"] = p.Heading
	}
	return fields
}

// EmitGoal records a goal.
func (r *Recorder) EmitGoal(ctx context.Context, goal follower.Goal) {
	r.writer.Write(Sample{
		Measurement: MeasurementGoal,
		Tags:        map[string]string{"session": r.session, "index": strconv.Itoa(goal.Index)},
		Fields:      poseFields(goal.Pose),
		Time:        goal.IssuedAt,
	})
}

// RecordPose records a vehicle pose. A pose with a timestamp already recorded is skipped.
func (r *Recorder) RecordPose(pose follower.VehiclePose) {
	r.mu.Lock()
	if !pose.Timestamp.After(r.lastPose) {
		r.mu.Unlock()
		return
	}
	r.lastPose = pose.Timestamp
	r.mu.Unlock()

	r.writer.Write(Sample{
		Measurement: MeasurementPose,
		Tags:        map[string]string{"session": r.session},
		Fields:      poseFields(pose.Pose),
		Time:        pose.Timestamp,
	})
}

// SamplePoses records the latest pose of src every period until Close.
func (r *Recorder) SamplePoses(src StatusSource, period time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workers != nil {
		return
	}
	r.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		ticker := r.clock.Ticker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if status := src.Status(); status.Pose != nil {
				r.RecordPose(*status.Pose)
			}
		}
	})
}

// Close stops pose sampling and closes the writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	workers := r.workers
	r.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return r.writer.Close()
}
