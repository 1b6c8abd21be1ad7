package inject

import (
	"context"
	"sync"

	"go.viam.com/waypointfollower/follower"
)

// GoalConsumer is an injected goal consumer. Every goal is recorded before being forwarded.
type GoalConsumer struct {
	follower.GoalConsumer
	EmitGoalFunc func(ctx context.Context, goal follower.Goal)

	mu    sync.Mutex
	goals []follower.Goal
}

// NewGoalConsumer returns a GoalConsumer that only records.
func NewGoalConsumer() *GoalConsumer {
	return &GoalConsumer{}
}

// EmitGoal records the goal and calls the injected EmitGoal or the real version, if any.
func (gc *GoalConsumer) EmitGoal(ctx context.Context, goal follower.Goal) {
	gc.mu.Lock()
	gc.goals = append(gc.goals, goal)
	gc.mu.Unlock()

	if gc.EmitGoalFunc != nil {
		gc.EmitGoalFunc(ctx, goal)
		return
	}
	if gc.GoalConsumer != nil {
		gc.GoalConsumer.EmitGoal(ctx, goal)
	}
}

// Goals returns a copy of every goal received so far.
func (gc *GoalConsumer) Goals() []follower.Goal {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	out := make([]follower.Goal, len(gc.goals))
	copy(out, gc.goals)
	return out
}

// Indices returns the waypoint index of every goal received so far.
func (gc *GoalConsumer) Indices() []int {
	goals := gc.Goals()
	indices := make([]int, 0, len(goals))
	for _, g := range goals {
		indices = append(indices, g.Index)
	}
	return indices
}
