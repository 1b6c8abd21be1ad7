// Package web exposes a follower over HTTP: operator command endpoints, a status endpoint, pose
// ingest and a websocket stream of emitted goals.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/justinas/alice"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/health"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/spatialmath"
)

// API routes.
const (
	PathPrepare    = "/api/v1/prepare"
	PathStart      = "/api/v1/start"
	PathStop       = "/api/v1/stop"
	PathStatus     = "/api/v1/status"
	PathHealth     = "/api/v1/health"
	PathPose       = "/api/v1/pose"
	PathPoseStream = "/api/v1/pose/ws"
	PathGoalStream = "/api/v1/goals/ws"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PoseMessage is a vehicle pose as sent to the pose endpoints: [x, y, z] or [x, y, z, heading].
// The receive time is used as the pose timestamp.
type PoseMessage struct {
	Pose []float64 `json:"pose"`
}

// Service serves a follower over HTTP.
type Service struct {
	follower *follower.Follower
	monitor  *health.Monitor
	hub      *GoalHub
	logger   logging.Logger

	mu         sync.Mutex
	addr       string
	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	isRunning  bool
	closed     bool
	webWorkers sync.WaitGroup
}

// New returns a web service for the follower. The hub must be one of the follower's goal
// consumers for the goal stream to carry anything.
func New(f *follower.Follower, monitor *health.Monitor, hub *GoalHub, logger logging.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		follower:   f,
		monitor:    monitor,
		hub:        hub,
		logger:     logger,
		cancelCtx:  ctx,
		cancelFunc: cancel,
	}
}

// Start starts serving on the configured address or listener.
func (svc *Service) Start(ctx context.Context, o Options) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.isRunning {
		return errors.New("web server already started")
	}
	if svc.closed {
		return errors.New("web server closed")
	}
	if o.BindAddress != "" && o.Listener != nil {
		return errors.New("may only set one of bind address or listener")
	}

	listener := o.Listener
	if listener == nil {
		var err error
		lc := net.ListenConfig{}
		listener, err = lc.Listen(ctx, "tcp", o.BindAddress)
		if err != nil {
			return err
		}
	}
	svc.addr = listener.Addr().String()

	httpServer := &http.Server{
		Handler:           svc.Handler(o),
		ReadHeaderTimeout: 10 * time.Second,
	}
	svc.isRunning = true

	svc.webWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer svc.webWorkers.Done()
		<-svc.cancelCtx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			svc.logger.Errorw("error shutting down", "error", err)
		}
	})
	svc.webWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer svc.webWorkers.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			svc.logger.Errorw("error serving http", "error", err)
		}
	})
	svc.logger.Infow("serving", "url", fmt.Sprintf("http://%s", svc.addr))
	return nil
}

// Address returns the address the service is listening on.
func (svc *Service) Address() string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.addr
}

// Close stops the server and waits for open websocket streams to finish.
func (svc *Service) Close(ctx context.Context) error {
	svc.mu.Lock()
	svc.closed = true
	svc.isRunning = false
	svc.cancelFunc()
	svc.mu.Unlock()
	svc.webWorkers.Wait()
	return nil
}

// Handler returns the routes of the service wrapped in CORS handling.
func (svc *Service) Handler(o Options) http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Post(PathPrepare), svc.commandHandler(follower.CommandPrepareFirstWaypoint))
	mux.HandleFunc(pat.Post(PathStart), svc.commandHandler(follower.CommandStartFollowing))
	mux.HandleFunc(pat.Post(PathStop), svc.commandHandler(follower.CommandStopFollowing))
	mux.HandleFunc(pat.Get(PathStatus), svc.handleStatus)
	mux.HandleFunc(pat.Get(PathHealth), svc.handleHealth)
	mux.HandleFunc(pat.Post(PathPose), svc.handlePose)
	mux.HandleFunc(pat.Get(PathPoseStream), svc.handlePoseStream)
	mux.HandleFunc(pat.Get(PathGoalStream), svc.handleGoalStream)
	return alice.New(svc.recoverPanic, svc.logRequest, corsHandler(o.CORSOrigins).Handler).Then(mux)
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 || lo.Contains(origins, "*") {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
}

func (svc *Service) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		svc.logger.Debugw("error writing response", "error", err)
	}
}

func (svc *Service) commandHandler(cmd follower.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := svc.follower.Do(r.Context(), cmd)
		code := http.StatusOK
		if !result.Success {
			code = http.StatusConflict
		}
		svc.writeJSON(w, code, result)
	}
}

func (svc *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	svc.writeJSON(w, http.StatusOK, svc.follower.Status())
}

func (svc *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	svc.writeJSON(w, http.StatusOK, svc.monitor.Statuses())
}

func (svc *Service) applyPose(msg PoseMessage) error {
	pose, err := spatialmath.PoseFromSlice(msg.Pose)
	if err != nil {
		return err
	}
	if !spatialmath.Finite(msg.Pose...) {
		return errors.New("pose contains a non-finite value")
	}
	svc.follower.UpdatePose(follower.VehiclePose{Pose: pose})
	return nil
}

func (svc *Service) handlePose(w http.ResponseWriter, r *http.Request) {
	var msg PoseMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, errors.Wrap(err, "failed to decode pose").Error(), http.StatusBadRequest)
		return
	}
	if err := svc.applyPose(msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamContext returns a context that ends with the request or when the service closes, and
// registers the stream so Close waits for it. ok is false if the service is closing.
func (svc *Service) streamContext(r *http.Request) (ctx context.Context, done func(), ok bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.closed {
		return nil, nil, false
	}
	svc.webWorkers.Add(1)
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(svc.cancelCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
		svc.webWorkers.Done()
	}, true
}

// closeOnDone closes the connection once ctx ends so blocked reads return.
func closeOnDone(ctx context.Context, conn *websocket.Conn) func() {
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
			time.Now().Add(writeWait),
		)
		utils.UncheckedError(conn.Close())
	})
	return func() { stop() }
}

func (svc *Service) handlePoseStream(w http.ResponseWriter, r *http.Request) {
	ctx, done, ok := svc.streamContext(r)
	if !ok {
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}
	defer done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		svc.logger.Debugw("pose stream upgrade failed", "error", err)
		return
	}
	defer utils.UncheckedErrorFunc(conn.Close)
	defer closeOnDone(ctx, conn)()

	svc.logger.Infow("pose stream connected", "remote", r.RemoteAddr)
	for {
		var msg PoseMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				svc.logger.Warnw("pose stream ended", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if err := svc.applyPose(msg); err != nil {
			svc.logger.Warnw("ignoring invalid pose", "remote", r.RemoteAddr, "error", err)
		}
	}
}

func (svc *Service) handleGoalStream(w http.ResponseWriter, r *http.Request) {
	ctx, done, ok := svc.streamContext(r)
	if !ok {
		http.Error(w, "server closing", http.StatusServiceUnavailable)
		return
	}
	defer done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		svc.logger.Debugw("goal stream upgrade failed", "error", err)
		return
	}
	defer utils.UncheckedErrorFunc(conn.Close)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer closeOnDone(ctx, conn)()

	goals, unsubscribe := svc.hub.Subscribe()
	defer unsubscribe()

	// Subscribers only listen; reading is how a closed peer is noticed.
	var readers sync.WaitGroup
	readers.Add(1)
	utils.PanicCapturingGo(func() {
		defer readers.Done()
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	})
	defer readers.Wait()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case goal := <-goals:
			utils.UncheckedError(conn.SetWriteDeadline(time.Now().Add(writeWait)))
			if err := conn.WriteJSON(goal); err != nil {
				svc.logger.Debugw("goal stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
