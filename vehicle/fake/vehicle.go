// Package fake implements a simulated vehicle that flies in a straight line toward the latest goal
// it was given and reports its pose on a fixed period.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
)

// PoseSink receives the vehicle's pose reports. *follower.Follower is one.
type PoseSink interface {
	UpdatePose(pose follower.VehiclePose)
}

// PoseSinkFunc adapts a function into a PoseSink.
type PoseSinkFunc func(pose follower.VehiclePose)

// UpdatePose calls f.
func (f PoseSinkFunc) UpdatePose(pose follower.VehiclePose) {
	f(pose)
}

// Config describes the fake vehicle.
type Config struct {
	SpeedMPS     float64
	UpdatePeriod time.Duration
	Start        spatialmath.Pose
}

// Vehicle is a fake vehicle. It is a follower.GoalConsumer.
type Vehicle struct {
	cfg    Config
	sink   PoseSink
	clock  clock.Clock
	logger logging.Logger

	mu      sync.Mutex
	pose    spatialmath.Pose
	goal    *follower.Goal
	paused  bool
	workers *utils.StoppableWorkers
}

// NewVehicle returns a vehicle resting at cfg.Start. Start must be called for it to move on its own.
func NewVehicle(cfg Config, sink PoseSink, clk clock.Clock, logger logging.Logger) (*Vehicle, error) {
	if cfg.SpeedMPS <= 0 {
		return nil, errors.Errorf("speed must be positive, got %v", cfg.SpeedMPS)
	}
	if cfg.UpdatePeriod <= 0 {
		return nil, errors.Errorf("update period must be positive, got %v", cfg.UpdatePeriod)
	}
	if sink == nil {
		return nil, errors.New("fake vehicle requires a pose sink")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Vehicle{
		cfg:    cfg,
		sink:   sink,
		clock:  clk,
		logger: logger,
		pose:   cfg.Start,
	}, nil
}

// EmitGoal replaces the goal the vehicle flies toward.
func (v *Vehicle) EmitGoal(ctx context.Context, goal follower.Goal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.goal = &goal
}

// Start moves and reports every UpdatePeriod until Close.
func (v *Vehicle) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.workers != nil {
		return
	}
	v.workers = utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		ticker := v.clock.Ticker(v.cfg.UpdatePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			v.Step()
		}
	})
}

// Step advances the vehicle by one update period and reports its pose unless paused.
func (v *Vehicle) Step() {
	v.mu.Lock()
	if v.goal != nil {
		v.pose = stepToward(v.pose, v.goal.Pose, v.cfg.SpeedMPS*v.cfg.UpdatePeriod.Seconds())
	}
	pose := v.pose
	paused := v.paused
	v.mu.Unlock()

	if paused {
		return
	}
	v.sink.UpdatePose(follower.VehiclePose{Pose: pose, Timestamp: v.clock.Now()})
}

// stepToward moves at most maxStep meters toward goal. The goal heading, if any, is adopted
// immediately.
func stepToward(from, goal spatialmath.Pose, maxStep float64) spatialmath.Pose {
	delta := goal.Point.Sub(from.Point)
	next := from
	if dist := delta.Norm(); dist <= maxStep {
		next.Point = goal.Point
	} else {
		next.Point = from.Point.Add(delta.Mul(maxStep / dist))
	}
	if goal.HasHeading {
		next.Heading = goal.Heading
		next.HasHeading = true
	}
	return next
}

// Pause stops pose reports, simulating a dead pose feed. The vehicle keeps moving.
func (v *Vehicle) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.paused {
		v.logger.Info("pausing simulated pose feed")
	}
	v.paused = true
}

// Resume restarts pose reports.
func (v *Vehicle) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.paused {
		v.logger.Info("resuming simulated pose feed")
	}
	v.paused = false
}

// Pose returns the current simulated pose.
func (v *Vehicle) Pose() spatialmath.Pose {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pose
}

// Goal returns the goal being flown to, if any.
func (v *Vehicle) Goal() (follower.Goal, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.goal == nil {
		return follower.Goal{}, false
	}
	return *v.goal, true
}

// Close stops the vehicle.
func (v *Vehicle) Close(ctx context.Context) error {
	v.mu.Lock()
	workers := v.workers
	v.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
