package web

import (
	"context"
	"sync"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/logging"
)

const subscriberBuffer = 16

// GoalHub fans emitted goals out to websocket subscribers. A subscriber that falls behind loses
// goals rather than slowing down the follower. New subscribers first receive the latest goal.
type GoalHub struct {
	logger logging.Logger

	mu          sync.Mutex
	last        *follower.Goal
	subscribers map[chan follower.Goal]struct{}
}

// NewGoalHub returns an empty hub.
func NewGoalHub(logger logging.Logger) *GoalHub {
	return &GoalHub{
		logger:      logger,
		subscribers: map[chan follower.Goal]struct{}{},
	}
}

// EmitGoal records the goal and hands it to every subscriber without blocking.
func (h *GoalHub) EmitGoal(ctx context.Context, goal follower.Goal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &goal
	for ch := range h.subscribers {
		select {
		case ch <- goal:
		default:
			h.logger.Warnw("goal subscriber is not keeping up, dropping goal", "index", goal.Index)
		}
	}
}

// Subscribe registers a new subscriber. The returned func must be called to unsubscribe.
func (h *GoalHub) Subscribe() (<-chan follower.Goal, func()) {
	ch := make(chan follower.Goal, subscriberBuffer)
	h.mu.Lock()
	if h.last != nil {
		ch <- *h.last
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of current subscribers.
func (h *GoalHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Last returns the latest goal, if any.
func (h *GoalHub) Last() (follower.Goal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return follower.Goal{}, false
	}
	return *h.last, true
}
