package follower

import (
	"context"
	"fmt"
)

// Command is one of the operator commands.
type Command int

// The operator commands.
const (
	CommandPrepareFirstWaypoint Command = iota
	CommandStartFollowing
	CommandStopFollowing
)

func (c Command) String() string {
	switch c {
	case CommandPrepareFirstWaypoint:
		return "prepare_first_waypoint"
	case CommandStartFollowing:
		return "start_following"
	case CommandStopFollowing:
		return "stop_following"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// CommandResult is the boolean plus reason answer returned to operators.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var successMessages = map[Command]string{
	CommandPrepareFirstWaypoint: "flying to the first waypoint",
	CommandStartFollowing:       "following waypoints",
	CommandStopFollowing:        "waypoint following stopped",
}

// ResultFromError converts a command outcome into a CommandResult.
func ResultFromError(cmd Command, err error) CommandResult {
	if err != nil {
		return CommandResult{Success: false, Message: err.Error()}
	}
	return CommandResult{Success: true, Message: successMessages[cmd]}
}

// Do runs a command and returns its result. It never blocks waiting for the vehicle.
func (f *Follower) Do(ctx context.Context, cmd Command) CommandResult {
	var err error
	switch cmd {
	case CommandPrepareFirstWaypoint:
		err = f.PrepareFirstWaypoint(ctx)
	case CommandStartFollowing:
		err = f.StartFollowing(ctx)
	case CommandStopFollowing:
		err = f.StopFollowing(ctx)
	default:
		err = fmt.Errorf("unknown command %d", int(cmd))
	}
	return ResultFromError(cmd, err)
}

// PrepareFirstWaypoint sets the current index to zero and emits the first waypoint. It is valid
// only from Idle, once a live vehicle pose has been received.
func (f *Follower) PrepareFirstWaypoint(ctx context.Context) error {
	const cmd = CommandPrepareFirstWaypoint
	live := f.monitor.IsLive(poseStream)

	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()

	if f.shared.state != StateIdle {
		return f.reject(cmd, ErrAlreadyStarted, "waypoints already prepared, follower is %s", f.shared.state)
	}
	if !f.shared.havePose {
		return f.reject(cmd, ErrNotReady, "no vehicle pose received yet")
	}
	if !live {
		return f.reject(cmd, ErrNotReady, "vehicle pose feed is stale")
	}

	f.shared.index = 0
	f.shared.loopsLeft = f.cfg.Loops
	f.shared.complete = false
	f.shared.paused = false
	f.shared.state = StatePreparingFirstWaypoint
	f.emitLocked(ctx)
	f.logger.Infow("prepared first waypoint", "waypoints", f.store.Count())
	return nil
}

// StartFollowing enables advancement. From Stopped it resumes at the paused index.
func (f *Follower) StartFollowing(ctx context.Context) error {
	const cmd = CommandStartFollowing
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()

	switch f.shared.state {
	case StatePreparingFirstWaypoint, StateStopped:
		f.logger.Infow("following waypoints", "from", f.shared.state.String(), "index", f.shared.index)
		f.shared.state = StateFollowing
		return nil
	case StateFollowing:
		return f.reject(cmd, ErrAlreadyStarted, "already following waypoints")
	case StateIdle:
		return f.reject(cmd, ErrInvalidTransition, "no waypoint prepared, run %s first", CommandPrepareFirstWaypoint)
	default:
		return f.reject(cmd, ErrInvalidTransition, "cannot start while %s", f.shared.state)
	}
}

// StopFollowing disables advancement. The last emitted goal is not revoked. Stopping an already
// stopped follower succeeds without change.
func (f *Follower) StopFollowing(ctx context.Context) error {
	const cmd = CommandStopFollowing
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()

	switch f.shared.state {
	case StatePreparingFirstWaypoint, StateFollowing:
		from := f.shared.state
		// Stopping completes inside this critical section: no further advancement, goal kept.
		f.shared.state = StateStopped
		f.logger.Infow("stopped following waypoints", "from", from.String(), "index", f.shared.index)
		return nil
	case StateStopped:
		return nil
	case StateIdle:
		return f.reject(cmd, ErrInvalidTransition, "nothing to stop, no waypoint prepared")
	default:
		return f.reject(cmd, ErrInvalidTransition, "cannot stop while %s", f.shared.state)
	}
}

// reject logs and builds a rejection. The caller must hold the state lock.
func (f *Follower) reject(cmd Command, kind error, format string, args ...interface{}) error {
	err := newCommandError(cmd, kind, f.shared.state, format, args...)
	f.logger.Warnw("command rejected", "command", cmd.String(), "error", err)
	return err
}
