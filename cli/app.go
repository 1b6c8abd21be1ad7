// Package cli contains the operator command line for a running waypoint follower.
package cli

import (
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"go.viam.com/waypointfollower/follower"
)

const (
	addressFlag  = "address"
	noColorFlag  = "no-color"
	timeoutFlag  = "timeout"
	intervalFlag = "interval"

	// DefaultAddress is where followerctl looks for a follower when no address is given.
	DefaultAddress = "localhost:8080"
)

// NewApp returns a new app with the operator commands, Writer set to out, and ErrWriter set to
// errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "followerctl",
		Usage:           "command a running waypoint follower",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    addressFlag,
				Aliases: []string{"a"},
				Usage:   "`ADDRESS` of the follower web service, host:port or URL",
				EnvVars: []string{"FOLLOWER_ADDRESS"},
				Value:   DefaultAddress,
			},
			&cli.BoolFlag{
				Name:  noColorFlag,
				Usage: "disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			disableColor(c.Bool(noColorFlag))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "prepare",
				Usage:  "send the vehicle to the first waypoint",
				Action: commandAction(follower.CommandPrepareFirstWaypoint),
			},
			{
				Name:   "start",
				Usage:  "start or resume following waypoints",
				Action: commandAction(follower.CommandStartFollowing),
			},
			{
				Name:   "stop",
				Usage:  "stop advancing through the waypoints",
				Action: commandAction(follower.CommandStopFollowing),
			},
			{
				Name:   "status",
				Usage:  "print the follower state",
				Action: StatusAction,
			},
			{
				Name:  "wait",
				Usage: "wait until the follower holds at the final waypoint",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  timeoutFlag,
						Usage: "give up after `DURATION`",
						Value: 10 * time.Minute,
					},
					&cli.DurationFlag{
						Name:  intervalFlag,
						Usage: "poll the follower every `DURATION`",
						Value: 500 * time.Millisecond,
					},
				},
				Action: WaitAction,
			},
			{
				Name:   "health",
				Usage:  "print the liveness of the input streams",
				Action: HealthAction,
			},
			{
				Name:      "pose",
				Usage:     "report a vehicle pose by hand",
				ArgsUsage: "<x> <y> <z> [heading]",
				Action:    PoseAction,
			},
		},
	}
}
