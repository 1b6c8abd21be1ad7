package follower

import (
	"context"
	"time"

	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
)

// Goal is a request for the downstream tracker to fly to a waypoint.
type Goal struct {
	Index    int              `json:"index"`
	Pose     spatialmath.Pose `json:"pose"`
	IssuedAt time.Time        `json:"issued_at"`
}

// A GoalConsumer receives emitted goals, fire and forget. EmitGoal is called while the follower
// holds its state lock, in waypoint order, and must not block.
type GoalConsumer interface {
	EmitGoal(ctx context.Context, goal Goal)
}

// GoalConsumerFunc adapts a function into a GoalConsumer.
type GoalConsumerFunc func(ctx context.Context, goal Goal)

// EmitGoal calls f.
func (f GoalConsumerFunc) EmitGoal(ctx context.Context, goal Goal) {
	f(ctx, goal)
}

// MultiGoalConsumer sends every goal to each consumer in order.
type MultiGoalConsumer []GoalConsumer

// EmitGoal forwards the goal to every consumer.
func (m MultiGoalConsumer) EmitGoal(ctx context.Context, goal Goal) {
	for _, c := range m {
		c.EmitGoal(ctx, goal)
	}
}

// NewLoggingGoalConsumer returns a consumer that only logs each goal.
func NewLoggingGoalConsumer(logger logging.Logger) GoalConsumer {
	return GoalConsumerFunc(func(ctx context.Context, goal Goal) {
		logger.Infow("goal", "index", goal.Index, "pose", goal.Pose.String())
	})
}
