package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tracey-dev/tracey/internal/engine"
	"github.com/tracey-dev/tracey/internal/query"
	"github.com/tracey-dev/tracey/internal/ruleid"
)

const defaultIdleTimeout = 600 * time.Second

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracey_ipc_requests_total",
		Help: "Total number of IPC requests handled, by op and outcome.",
	}, []string{"op", "outcome"})
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracey_ipc_active_connections",
		Help: "Number of currently open IPC connections.",
	})
)

// Server is the daemon-side endpoint: one Unix socket (or named pipe)
// accepting newline-delimited JSON requests, backed by an engine.Engine.
// It shuts itself down after idleTimeout elapses with zero open
// connections, per spec.md §4.13.
type Server struct {
	eng         *engine.Engine
	endpoint    string
	idleTimeout time.Duration
	startedAt   time.Time

	mu          sync.Mutex
	conns       int
	lastConnAt  time.Time
	listener    net.Listener
	shuttingDown chan struct{}
	watcherState string
	eventLog    *EventLog
}

// NewServer constructs a Server for eng, listening at endpoint (from
// EndpointPath). idleTimeout <= 0 defaults to 600s.
func NewServer(eng *engine.Engine, endpoint string, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Server{
		eng:          eng,
		endpoint:     endpoint,
		idleTimeout:  idleTimeout,
		startedAt:    time.Now(),
		shuttingDown: make(chan struct{}),
		watcherState: "stopped",
	}
}

// SetWatcherState records the watcher's current lifecycle state for the
// health op ("running", "stopped", "restarting").
func (s *Server) SetWatcherState(state string) {
	s.mu.Lock()
	s.watcherState = state
	s.mu.Unlock()
	s.logEvent(Event{Time: time.Now(), Kind: "watcher_state", State: state})
}

// SetEventLog attaches the structured sidecar events are appended to.
// Without one, SetWatcherState and subscribe completions are no-ops as far
// as event logging goes — the IPC protocol itself is unaffected.
func (s *Server) SetEventLog(l *EventLog) {
	s.mu.Lock()
	s.eventLog = l
	s.mu.Unlock()
}

func (s *Server) logEvent(ev Event) {
	s.mu.Lock()
	l := s.eventLog
	s.mu.Unlock()
	if l != nil {
		_ = l.Append(ev)
	}
}

// Listen claims the endpoint. If the path exists and a live daemon answers,
// it returns an error ("daemon already running"); if the path exists but
// nothing answers, the stale socket file is removed first (spec.md §4.13).
func (s *Server) Listen() error {
	if _, err := os.Stat(s.endpoint); err == nil {
		if probeLive(s.endpoint) {
			return fmt.Errorf("daemon already running at %s", s.endpoint)
		}
		_ = os.Remove(s.endpoint)
	}

	l, err := net.Listen("unix", s.endpoint)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

func probeLive(endpoint string) bool {
	conn, err := net.DialTimeout("unix", endpoint, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Serve accepts connections until Shutdown is called or the idle timeout
// elapses with no open connections. Accept uses a 30s deadline to
// periodically re-check idle-shutdown conditions, per spec.md §5.
func (s *Server) Serve() error {
	defer os.Remove(s.endpoint)

	s.touch()
	idleCheck := time.NewTicker(30 * time.Second)
	defer idleCheck.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if ul, ok := s.listener.(*net.UnixListener); ok {
				_ = ul.SetDeadline(time.Now().Add(30 * time.Second))
			}
			conn, err := s.listener.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return
			}
			s.touch()
			go s.handleConn(conn)
		}
	}()

	for {
		select {
		case <-s.shuttingDown:
			_ = s.listener.Close()
			<-done
			return nil
		case <-idleCheck.C:
			if s.idleElapsed() {
				_ = s.listener.Close()
				<-done
				return nil
			}
		case <-done:
			return nil
		}
	}
}

func (s *Server) touch() {
	s.mu.Lock()
	s.lastConnAt = time.Now()
	s.mu.Unlock()
}

func (s *Server) idleElapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == 0 && time.Since(s.lastConnAt) >= s.idleTimeout
}

// Shutdown requests the accept loop stop; Serve returns soon after.
func (s *Server) Shutdown() {
	select {
	case <-s.shuttingDown:
	default:
		close(s.shuttingDown)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()
	activeConnections.Inc()
	defer func() {
		s.mu.Lock()
		s.conns--
		s.lastConnAt = time.Now()
		s.mu.Unlock()
		activeConnections.Dec()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			requestsTotal.WithLabelValues("_invalid", "error").Inc()
			_ = enc.Encode(Response{OK: false, Error: "invalid request: " + err.Error()})
			continue
		}
		resp := s.dispatch(req)
		outcome := "ok"
		if !resp.OK {
			outcome = "error"
		}
		requestsTotal.WithLabelValues(req.Op, outcome).Inc()
		if err := enc.Encode(resp); err != nil {
			return
		}
		if req.Op == "shutdown" {
			s.Shutdown()
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	data := s.eng.Data()

	switch req.Op {
	case "health":
		return ok(HealthPayload{
			Uptime:       time.Since(s.startedAt).Seconds(),
			DataVersion:  data.Version,
			WatcherState: s.watcherStateValue(),
			ConfigError:  data.ConfigError,
		})
	case "status":
		return ok(query.Status(data))
	case "uncovered":
		return ok(query.Uncovered(data, filterFromArgs(req.Args)))
	case "untested":
		return ok(query.Untested(data, filterFromArgs(req.Args)))
	case "stale":
		return ok(query.Stale(data, filterFromArgs(req.Args)))
	case "unmapped":
		return ok(query.Unmapped(data, stringArg(req.Args, "path")))
	case "rule":
		id, valid := parseRuleIDArg(req.Args)
		if !valid {
			return failed("rule: missing or invalid id")
		}
		detail, found := query.Rule(data, id)
		if !found {
			return failed("rule: no such rule-id")
		}
		return ok(detail)
	case "config":
		return ok(data.Config)
	case "validate":
		return ok(query.Validate(data, stringArg(req.Args, "spec")))
	case "vfs_open":
		v := vfsArg(req.Args)
		s.eng.VFSOpen(v.Path, []byte(v.Content))
		s.eng.ScheduleRebuildWithChanges([]string{v.Path})
		return ok(nil)
	case "vfs_change":
		v := vfsArg(req.Args)
		s.eng.VFSChange(v.Path, []byte(v.Content))
		s.eng.ScheduleRebuildWithChanges([]string{v.Path})
		return ok(nil)
	case "vfs_close":
		s.eng.VFSClose(stringArg(req.Args, "path"))
		s.eng.ScheduleRebuildWithChanges(nil)
		return ok(nil)
	case "subscribe":
		version := <-s.eng.Subscribe()
		s.logEvent(Event{Time: time.Now(), Kind: "rebuild", Version: version})
		return ok(version)
	case "shutdown":
		return ok(nil)
	default:
		return failed("unknown op: " + req.Op)
	}
}

func (s *Server) watcherStateValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcherState
}

func ok(data any) Response       { return Response{OK: true, Data: data} }
func failed(msg string) Response { return Response{OK: false, Error: msg} }

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func filterFromArgs(args map[string]any) query.Filter {
	return query.Filter{
		Spec:   stringArg(args, "spec"),
		Impl:   stringArg(args, "impl"),
		Prefix: stringArg(args, "prefix"),
	}
}

func vfsArg(args map[string]any) VFSPayload {
	return VFSPayload{Path: stringArg(args, "path"), Content: stringArg(args, "content")}
}

func parseRuleIDArg(args map[string]any) (ruleid.RuleID, bool) {
	raw := stringArg(args, "id")
	if raw == "" {
		return ruleid.RuleID{}, false
	}
	base := raw
	version := 1
	if idx := lastIndexByte(raw, '+'); idx >= 0 {
		base = raw[:idx]
		if n, err := strconv.Atoi(raw[idx+1:]); err == nil && n > 0 {
			version = n
		}
	}
	if !ruleid.ValidBase(base) {
		return ruleid.RuleID{}, false
	}
	return ruleid.RuleID{Base: base, Version: version}, true
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
