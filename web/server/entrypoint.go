// Package server implements the entry point for running a waypoint follower with its web
// command interface.
package server

import (
	"context"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/waypointfollower/config"
	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/health"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
	"go.viam.com/waypointfollower/telemetry"
	"go.viam.com/waypointfollower/vehicle/fake"
	"go.viam.com/waypointfollower/web"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=follower config file"`
	Debug      bool   `flag:"debug"`
	EnvFile    string `flag:"env,usage=dotenv file to load before reading the config"`
}

// RunServer is an entry point to starting the follower that can be called by main or otherwise
// be used to initialize the server. It runs until ctx is done. Log patterns are reapplied whenever
// the config file changes.
func RunServer(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if err := loadEnv(argsParsed.EnvFile); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	initialReadCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	cfg, err := config.Read(initialReadCtx, argsParsed.ConfigFile, logger)
	if err != nil {
		cancel()
		return err
	}
	cancel()

	if cfg.LogFile != "" {
		fileAppender := logging.NewFileAppender(cfg.LogFile)
		logger.AddAppender(fileAppender)
		defer func() {
			err = multierr.Combine(err, fileAppender.Close())
		}()
	}

	srv, err := New(cfg, clock.New(), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, srv.Close(context.Background()))
	}()
	if err := srv.Start(ctx); err != nil {
		logger.Errorw("error serving web", "error", err)
		return err
	}

	workers, workersCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		return watchLogConfig(workersCtx, argsParsed.ConfigFile, srv.Registry(), logger)
	})
	workers.Go(func() error {
		<-workersCtx.Done()
		return nil
	})
	utils.ContextMainReadyFunc(ctx)()

	if err := workers.Wait(); err != nil {
		return errors.Wrap(err, "config watcher failed")
	}
	logger.Info("shutting down")
	return nil
}

// loadEnv loads path into the environment, or ./.env when path is empty and the file exists.
// Variables already set are not overridden.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return errors.Wrap(godotenv.Load(), "error loading .env")
	}
	return errors.Wrapf(godotenv.Load(path), "error loading env file %q", path)
}

// Server owns every component of a running follower.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *logging.Registry

	monitor  *health.Monitor
	follower *follower.Follower
	hub      *web.GoalHub
	web      *web.Service
	recorder *telemetry.Recorder
	vehicle  *fake.Vehicle
}

// New assembles a follower from a config returned by config.Read. Nothing runs until Start.
func New(cfg *config.Config, clk clock.Clock, logger logging.Logger) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("config has no loaded waypoints")
	}
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	registry := logging.NewRegistry(logger.GetLevel())
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
	}

	s.monitor = health.NewMonitor(
		clk,
		cfg.StalenessThreshold(),
		cfg.WarningInterval(),
		registry.Sublogger(logger, "health"),
		health.StreamVehiclePose,
	)
	s.hub = web.NewGoalHub(registry.Sublogger(logger, "web"))

	goals := follower.MultiGoalConsumer{
		follower.NewLoggingGoalConsumer(registry.Sublogger(logger, "goals")),
		s.hub,
	}
	if cfg.Telemetry != nil {
		telemetryLogger := registry.Sublogger(logger, "telemetry")
		writer := telemetry.NewInfluxWriter(cfg.Telemetry.URL, cfg.Telemetry.Token, cfg.Telemetry.Org, cfg.Telemetry.Bucket, telemetryLogger)
		s.recorder = telemetry.NewRecorder(writer, clk, telemetryLogger)
		goals = append(goals, s.recorder)
	}
	if cfg.Simulation != nil && cfg.Simulation.Enabled {
		vehicle, err := s.newVehicle(clk)
		if err != nil {
			return nil, multierr.Combine(err, s.closeRecorder())
		}
		s.vehicle = vehicle
		goals = append(goals, vehicle)
	}

	f, err := follower.New(cfg.FollowerConfig(), cfg.Store, s.monitor, goals, clk, registry.Sublogger(logger, "controller"))
	if err != nil {
		return nil, multierr.Combine(err, s.closeRecorder())
	}
	s.follower = f
	s.web = web.New(f, s.monitor, s.hub, registry.Sublogger(logger, "web"))

	if err := registry.Update(cfg.Log, logger); err != nil {
		return nil, multierr.Combine(err, s.closeRecorder())
	}
	return s, nil
}

// newVehicle builds the simulated vehicle. Its poses go to the follower, which is assigned before
// the vehicle is started.
func (s *Server) newVehicle(clk clock.Clock) (*fake.Vehicle, error) {
	start := spatialmath.Pose{}
	if len(s.cfg.Simulation.Start) != 0 {
		var err error
		if start, err = spatialmath.PoseFromSlice(s.cfg.Simulation.Start); err != nil {
			return nil, errors.Wrap(err, "invalid simulation start")
		}
	}
	sink := fake.PoseSinkFunc(func(pose follower.VehiclePose) {
		s.follower.UpdatePose(pose)
	})
	return fake.NewVehicle(fake.Config{
		SpeedMPS:     s.cfg.Simulation.SpeedMPS,
		UpdatePeriod: s.cfg.Simulation.UpdatePeriod(),
		Start:        start,
	}, sink, clk, s.registry.Sublogger(s.logger, "vehicle"))
}

func (s *Server) closeRecorder() error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Close()
}

// Start starts the web service, the tick loop and, when configured, the simulated vehicle and
// pose sampling.
func (s *Server) Start(ctx context.Context) error {
	if err := s.web.Start(ctx, web.Options{
		BindAddress: s.cfg.Web.BindAddress,
		CORSOrigins: s.cfg.Web.CORSOrigins,
	}); err != nil {
		return err
	}
	s.follower.Start()
	if s.vehicle != nil {
		s.vehicle.Start()
	}
	if s.recorder != nil {
		s.recorder.SamplePoses(s.follower, s.cfg.FollowerConfig().TickPeriod)
	}
	s.logger.Infow("waypoint follower started",
		"waypoints", s.cfg.Store.Count(),
		"simulation", s.vehicle != nil,
		"telemetry", s.recorder != nil,
	)
	return nil
}

// Address is the address of the web service once started.
func (s *Server) Address() string {
	return s.web.Address()
}

// Follower returns the follower being served.
func (s *Server) Follower() *follower.Follower {
	return s.follower
}

// Registry returns the registry of the server's loggers.
func (s *Server) Registry() *logging.Registry {
	return s.registry
}

// Close stops every component, outermost first.
func (s *Server) Close(ctx context.Context) error {
	var err error
	err = multierr.Combine(err, s.web.Close(ctx))
	if s.vehicle != nil {
		err = multierr.Combine(err, s.vehicle.Close(ctx))
	}
	err = multierr.Combine(err, s.follower.Close(ctx), s.closeRecorder())
	return err
}
