// Package follower implements the waypoint following state machine: it decides which waypoint to
// pursue next, when to hand it to the downstream tracker, and how to react to operator commands
// and a degraded vehicle pose feed.
package follower

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/health"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/waypoint"
)

const poseStream = health.StreamVehiclePose

// Config holds the follower's tunables.
type Config struct {
	// ArrivalTolerance is the euclidean distance, in meters, at which a waypoint counts as reached.
	ArrivalTolerance float64
	// HeadingTolerance, in radians, is also required when positive and both poses have a heading.
	HeadingTolerance float64
	// TickPeriod is the period of the advancement loop started by Start.
	TickPeriod time.Duration
	// Loops is the number of extra passes over the sequence before holding at the last waypoint.
	Loops int
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.ArrivalTolerance <= 0 {
		return errors.Errorf("arrival tolerance must be positive, got %v", cfg.ArrivalTolerance)
	}
	if cfg.HeadingTolerance < 0 {
		return errors.Errorf("heading tolerance must not be negative, got %v", cfg.HeadingTolerance)
	}
	if cfg.TickPeriod <= 0 {
		return errors.Errorf("tick period must be positive, got %v", cfg.TickPeriod)
	}
	if cfg.Loops < 0 {
		return errors.Errorf("loops must not be negative, got %d", cfg.Loops)
	}
	return nil
}

// Follower drives a vehicle through a waypoint.Store. Pose updates, ticks and commands may be
// called concurrently.
type Follower struct {
	cfg     Config
	store   *waypoint.Store
	monitor *health.Monitor
	goals   GoalConsumer
	clock   clock.Clock
	logger  logging.Logger

	shared sharedState

	workers *utils.StoppableWorkers
}

// New returns an Idle follower. The store must have been loaded successfully; a follower is never
// built from a failed configuration. Start must be called to run the periodic tick.
func New(
	cfg Config,
	store *waypoint.Store,
	monitor *health.Monitor,
	goals GoalConsumer,
	clk clock.Clock,
	logger logging.Logger,
) (*Follower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("follower requires a loaded waypoint store")
	}
	if monitor == nil {
		return nil, errors.New("follower requires an input health monitor")
	}
	if goals == nil {
		return nil, errors.New("follower requires a goal consumer")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Follower{
		cfg:     cfg,
		store:   store,
		monitor: monitor,
		goals:   goals,
		clock:   clk,
		logger:  logger,
	}, nil
}

// Start runs Tick every TickPeriod until Close.
func (f *Follower) Start() {
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()
	if f.workers != nil {
		return
	}
	f.workers = utils.NewBackgroundStoppableWorkers(f.tickLoop)
}

func (f *Follower) tickLoop(ctx context.Context) {
	ticker := f.clock.Ticker(f.cfg.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		f.Tick(ctx)
	}
}

// Close stops the tick loop. The last emitted goal stays with the goal consumer.
func (f *Follower) Close(ctx context.Context) error {
	f.shared.mu.Lock()
	workers := f.workers
	f.shared.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

// UpdatePose records the latest vehicle pose. A zero timestamp, or one ahead of the follower
// clock, is replaced with the current time. Poses with a non-finite coordinate and poses older
// than the latest one are dropped.
func (f *Follower) UpdatePose(pose VehiclePose) {
	if !pose.Pose.IsFinite() {
		f.logger.Warnw("dropping pose with a non-finite coordinate", "pose", pose.Pose.String())
		return
	}
	now := f.clock.Now()
	if pose.Timestamp.IsZero() || pose.Timestamp.After(now) {
		pose.Timestamp = now
	}
	if !f.shared.setPose(pose) {
		f.logger.Debugw("dropping out of order pose", "timestamp", pose.Timestamp)
		return
	}
	f.monitor.Touch(poseStream, pose.Timestamp)
}

// Tick evaluates input health and, while Following with a live pose feed, advances at most one
// waypoint. Spurious ticks are harmless: without a pose change a second tick changes nothing.
func (f *Follower) Tick(ctx context.Context) {
	f.monitor.Check()
	live := f.monitor.IsLive(poseStream)

	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()

	if !f.shared.havePose || f.shared.state != StateFollowing {
		return
	}
	if !live {
		if !f.shared.paused {
			f.shared.paused = true
			f.logger.Warnw("vehicle pose feed is stale, pausing waypoint advancement", "index", f.shared.index)
		}
		return
	}
	if f.shared.paused {
		f.shared.paused = false
		f.logger.Infow("vehicle pose feed is live, resuming waypoint advancement", "index", f.shared.index)
	}

	snap := f.shared.snapshotLocked()
	target := f.store.Get(snap.index)
	if !snap.pose.Pose.Within(target.Pose, f.cfg.ArrivalTolerance, f.cfg.HeadingTolerance) {
		return
	}

	switch {
	case snap.index < f.store.Last():
		f.shared.index++
		f.logger.Infow("reached waypoint", "index", snap.index, "next", f.shared.index)
		f.emitLocked(ctx)
	case snap.loopsLeft > 0:
		f.shared.loopsLeft--
		f.shared.index = 0
		f.logger.Infow("reached last waypoint, starting next loop", "loops_remaining", f.shared.loopsLeft)
		f.emitLocked(ctx)
	case !snap.complete:
		f.shared.complete = true
		f.logger.Infow("reached last waypoint, holding position", "index", snap.index)
	}
}

// emitLocked sends the waypoint at the current index to the goal consumer. The caller must hold
// the state lock.
func (f *Follower) emitLocked(ctx context.Context) {
	wp := f.store.Get(f.shared.index)
	goal := Goal{Index: wp.Index, Pose: wp.Pose, IssuedAt: f.clock.Now()}
	f.logger.Debugw("emitting goal", "index", goal.Index, "pose", goal.Pose.String())
	f.goals.EmitGoal(ctx, goal)
}

// Status returns a consistent snapshot of the follower.
func (f *Follower) Status() Status {
	live := f.monitor.IsLive(poseStream)
	snap := f.shared.snapshot()

	status := Status{
		State:             snap.state,
		CurrentIndex:      snap.index,
		WaypointCount:     f.store.Count(),
		HavePose:          snap.havePose,
		PoseFeedLive:      live,
		AdvancementPaused: snap.paused,
		SequenceComplete:  snap.complete,
		LoopsRemaining:    snap.loopsLeft,
	}
	if snap.state == StateIdle {
		status.CurrentIndex = -1
		status.LoopsRemaining = f.cfg.Loops
	}
	if snap.havePose {
		pose := snap.pose
		status.Pose = &pose
	}
	return status
}

// Store returns the waypoints being followed.
func (f *Follower) Store() *waypoint.Store {
	return f.store
}
