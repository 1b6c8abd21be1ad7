package follower

import "sync"

// sharedState holds every field touched by more than one caller. All reads and writes go through
// mu; readers take a snapshot and compute against the copy.
type sharedState struct {
	mu sync.Mutex

	pose     VehiclePose
	havePose bool

	state     State
	index     int
	loopsLeft int
	// complete is set once the final waypoint is reached with no loops left.
	complete bool
	// paused is set while advancement is held back by a stale pose feed.
	paused bool
}

type snapshot struct {
	pose      VehiclePose
	havePose  bool
	state     State
	index     int
	loopsLeft int
	complete  bool
	paused    bool
}

// snapshotLocked copies the current fields. The caller must hold mu.
func (s *sharedState) snapshotLocked() snapshot {
	return snapshot{
		pose:      s.pose,
		havePose:  s.havePose,
		state:     s.state,
		index:     s.index,
		loopsLeft: s.loopsLeft,
		complete:  s.complete,
		paused:    s.paused,
	}
}

func (s *sharedState) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// setPose replaces the pose in one step. A pose older than the stored one is dropped and false is
// returned.
func (s *sharedState) setPose(pose VehiclePose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.havePose && pose.Timestamp.Before(s.pose.Timestamp) {
		return false
	}
	s.pose = pose
	s.havePose = true
	return true
}
