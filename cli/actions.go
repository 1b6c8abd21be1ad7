package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/spatialmath"
	"go.viam.com/waypointfollower/web"
)

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)

	colorEnabled = true
)

func disableColor(disabled bool) {
	colorEnabled = !disabled
	if disabled {
		successColor.DisableColor()
		failureColor.DisableColor()
		warningColor.DisableColor()
	}
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	_, _ = fmt.Fprintf(w, format+"\n", a...)
}

func successf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	_, _ = successColor.Fprintf(w, format+"\n", a...)
}

func failuref(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	_, _ = failureColor.Fprintf(w, format+"\n", a...)
}

func newClient(c *cli.Context) *web.Client {
	return web.NewClient(c.String(addressFlag))
}

// commandAction sends cmd. A rejected command is printed and returned as an error so the process
// exits non-zero.
func commandAction(cmd follower.Command) cli.ActionFunc {
	return func(c *cli.Context) error {
		client := newClient(c)
		defer client.Close()

		res, err := client.Command(c.Context, cmd)
		if err != nil {
			return err
		}
		if !res.Success {
			failuref(c.App.ErrWriter, "%s rejected: %s", cmd, res.Message)
			return errors.Errorf("%s rejected", cmd)
		}
		successf(c.App.Writer, "%s: %s", cmd, res.Message)
		return nil
	}
}

// StatusAction prints the follower status as a table.
func StatusAction(c *cli.Context) error {
	client := newClient(c)
	defer client.Close()

	status, err := client.Status(c.Context)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", statusTable(status))
	if !status.PoseFeedLive {
		//nolint:errcheck
		_, _ = warningColor.Fprintln(c.App.Writer, "vehicle pose feed is not live")
	}
	return nil
}

func statusTable(status follower.Status) string {
	index := "-"
	if status.CurrentIndex >= 0 {
		index = fmt.Sprintf("%d of %d", status.CurrentIndex, status.WaypointCount)
	}
	pose := "none"
	if status.Pose != nil {
		pose = fmt.Sprintf("%s at %s", status.Pose.Pose, status.Pose.Timestamp.Format(time.RFC3339Nano))
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"State", status.State},
		{"Waypoint", index},
		{"Pose", pose},
		{"Pose feed live", status.PoseFeedLive},
		{"Advancement paused", status.AdvancementPaused},
		{"Sequence complete", status.SequenceComplete},
		{"Loops remaining", status.LoopsRemaining},
	})
	return t.Render()
}

// HealthAction prints the liveness of every input stream.
func HealthAction(c *cli.Context) error {
	client := newClient(c)
	defer client.Close()

	statuses, err := client.Health(c.Context)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stream", "Live", "Last update", "Age"})
	for _, s := range statuses {
		lastUpdate, age := "never", "-"
		if !s.LastUpdate.IsZero() {
			lastUpdate = s.LastUpdate.Format(time.RFC3339Nano)
			age = units.HumanDuration(s.Age) + " ago"
		}
		t.AppendRow(table.Row{s.Name, s.Live, lastUpdate, age})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// PoseAction reports a pose given as arguments.
func PoseAction(c *cli.Context) error {
	if c.NArg() != 3 && c.NArg() != 4 {
		return errors.Errorf("expected x y z and an optional heading, got %d arguments", c.NArg())
	}
	values := make([]float64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		v, err := cast.ToFloat64E(arg)
		if err != nil {
			return errors.Wrapf(err, "invalid coordinate %q", arg)
		}
		values = append(values, v)
	}
	pose, err := spatialmath.PoseFromSlice(values)
	if err != nil {
		return err
	}

	client := newClient(c)
	defer client.Close()
	if err := client.SendPose(c.Context, pose); err != nil {
		return err
	}
	successf(c.App.Writer, "pose %s sent", pose)
	return nil
}

func progressText(status follower.Status) string {
	if status.CurrentIndex < 0 {
		return fmt.Sprintf("follower is %s", status.State)
	}
	text := fmt.Sprintf("%s, waypoint %d of %d", status.State, status.CurrentIndex, status.WaypointCount)
	if status.AdvancementPaused {
		text += ", paused on a stale pose feed"
	}
	return text
}

// WaitAction polls the follower until it holds at the final waypoint. It fails if the follower
// stops first or the timeout passes.
func WaitAction(c *cli.Context) error {
	client := newClient(c)
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag))
	defer cancel()
	progress, err := newProgress(c.App.Writer, colorEnabled, "waiting for the follower")
	if err != nil {
		return err
	}

	ticker := time.NewTicker(c.Duration(intervalFlag))
	defer ticker.Stop()
	for {
		status, err := client.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				progress.Fail("timed out")
				return errors.Wrap(ctx.Err(), "timed out waiting for the sequence")
			}
			progress.Fail("status unavailable")
			return err
		}
		switch {
		case status.SequenceComplete:
			progress.Success(fmt.Sprintf("sequence complete at waypoint %d of %d", status.CurrentIndex, status.WaypointCount))
			return nil
		case status.State == follower.StateStopped:
			progress.Fail(progressText(status))
			return errors.New("follower stopped before completing the sequence")
		}
		progress.UpdateText(progressText(status))

		select {
		case <-ctx.Done():
			progress.Fail("timed out: " + progressText(status))
			return errors.Wrap(ctx.Err(), "timed out waiting for the sequence")
		case <-ticker.C:
		}
	}
}
