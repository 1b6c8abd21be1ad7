// Package health tracks the liveness of the input streams the follower depends on.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"go.viam.com/waypointfollower/logging"
)

// StreamVehiclePose is the name of the vehicle pose feed.
const StreamVehiclePose = "vehicle_pose"

// DefaultWarningInterval is the minimum time between two degraded-input warnings for one stream.
const DefaultWarningInterval = 5 * time.Second

// StreamStatus is a point in time view of one input stream.
type StreamStatus struct {
	Name       string    `json:"name"`
	Live       bool      `json:"live"`
	LastUpdate time.Time `json:"last_update"`
	// Age is zero when the stream has never been updated.
	Age time.Duration `json:"age"`
}

type stream struct {
	lastUpdate time.Time
	received   bool
	live       bool
	warnings   *rate.Limiter
}

// Monitor records the last update time of each required stream and marks a stream not live once
// its age exceeds the staleness threshold. A stream that never received an update is not live.
type Monitor struct {
	clock           clock.Clock
	logger          logging.Logger
	threshold       time.Duration
	warningInterval time.Duration

	mu      sync.Mutex
	streams map[string]*stream
}

// NewMonitor returns a monitor for the named streams. warningInterval of zero uses
// DefaultWarningInterval.
func NewMonitor(
	clk clock.Clock,
	threshold time.Duration,
	warningInterval time.Duration,
	logger logging.Logger,
	streamNames ...string,
) *Monitor {
	if warningInterval <= 0 {
		warningInterval = DefaultWarningInterval
	}
	m := &Monitor{
		clock:           clk,
		logger:          logger,
		threshold:       threshold,
		warningInterval: warningInterval,
		streams:         make(map[string]*stream, len(streamNames)),
	}
	for _, name := range streamNames {
		m.streams[name] = m.newStream()
	}
	return m
}

func (m *Monitor) newStream() *stream {
	return &stream{warnings: rate.NewLimiter(rate.Every(m.warningInterval), 1)}
}

// Threshold returns the configured staleness threshold.
func (m *Monitor) Threshold() time.Duration {
	return m.threshold
}

// Touch records an update on the named stream at the given time. Unknown streams are added. A
// stream becomes live again immediately when the update is fresh. A time ahead of the monitor
// clock is recorded as now.
func (m *Monitor) Touch(name string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now := m.clock.Now(); at.After(now) {
		at = now
	}

	s, ok := m.streams[name]
	if !ok {
		s = m.newStream()
		m.streams[name] = s
	}
	if s.received && at.Before(s.lastUpdate) {
		return
	}
	s.lastUpdate = at
	s.received = true

	fresh := m.clock.Now().Sub(at) <= m.threshold
	if fresh && !s.live {
		s.live = true
		m.logger.Infow("input stream is live", "stream", name)
	}
}

// Check evaluates every stream against the staleness threshold and warns, rate limited per
// stream, about each stream that is not live. It returns the names of the streams not live,
// sorted.
func (m *Monitor) Check() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var degraded []string
	for name, s := range m.streams {
		if !s.received {
			degraded = append(degraded, name)
			if s.warnings.AllowN(now, 1) {
				m.logger.Warnw("waiting for first update on input stream", "stream", name)
			}
			continue
		}

		age := now.Sub(s.lastUpdate)
		if age <= m.threshold {
			continue
		}
		degraded = append(degraded, name)
		s.live = false
		if s.warnings.AllowN(now, 1) {
			m.logger.Warnw("input stream is stale",
				"stream", name, "age", age.String(), "threshold", m.threshold.String())
		}
	}
	sort.Strings(degraded)
	return degraded
}

// IsLive reports whether the named stream has been updated within the staleness threshold.
func (m *Monitor) IsLive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[name]
	return ok && s.received && m.clock.Now().Sub(s.lastUpdate) <= m.threshold
}

// HasReceived reports whether the named stream has received at least one update.
func (m *Monitor) HasReceived(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[name]
	return ok && s.received
}

// Statuses returns a snapshot of every stream, sorted by name.
func (m *Monitor) Statuses() []StreamStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	statuses := make([]StreamStatus, 0, len(m.streams))
	for name, s := range m.streams {
		status := StreamStatus{Name: name, LastUpdate: s.lastUpdate}
		if s.received {
			status.Age = now.Sub(s.lastUpdate)
			status.Live = status.Age <= m.threshold
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
