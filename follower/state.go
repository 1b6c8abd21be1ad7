package follower

import (
	"fmt"
	"time"

	"go.viam.com/waypointfollower/spatialmath"
)

// State is the lifecycle state of a Follower.
type State int

// The set of follower states. Stopping is transient: StopFollowing passes through it and lands in
// Stopped before releasing the state lock, so it is never observed from outside.
const (
	StateIdle State = iota
	StatePreparingFirstWaypoint
	StateFollowing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparingFirstWaypoint:
		return "preparing_first_waypoint"
	case StateFollowing:
		return "following"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateIdle; candidate <= StateStopped; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown follower state %q", string(text))
}

// VehiclePose is the latest known vehicle pose and the time it was received.
type VehiclePose struct {
	Pose      spatialmath.Pose `json:"pose"`
	Timestamp time.Time        `json:"timestamp"`
}

// Status is a consistent snapshot of the follower.
type Status struct {
	State State `json:"state"`
	// CurrentIndex is -1 while Idle.
	CurrentIndex      int          `json:"current_index"`
	WaypointCount     int          `json:"waypoint_count"`
	HavePose          bool         `json:"have_pose"`
	Pose              *VehiclePose `json:"pose,omitempty"`
	PoseFeedLive      bool         `json:"pose_feed_live"`
	AdvancementPaused bool         `json:"advancement_paused"`
	SequenceComplete  bool         `json:"sequence_complete"`
	LoopsRemaining    int          `json:"loops_remaining"`
}
