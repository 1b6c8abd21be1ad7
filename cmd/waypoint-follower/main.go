// Package main is the entry point for running a waypoint follower.
package main

import (
	"context"

	"go.viam.com/utils"

	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/web/server"
)

var logger = logging.NewLogger("follower")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return server.RunServer(ctx, args, logger)
}
