package modbustcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/port"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/pkg/mbframe"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DEFAULT_MAX_CONNECTIONS = 1024
	READ_BUFFER_SIZE        = 4096
	APPLY_TIMEOUT           = 5 * time.Second
)

const (
	FRAME_RESULT_OK          = "ok"
	FRAME_RESULT_MALFORMED   = "malformed"
	FRAME_RESULT_REJECTED    = "rejected"
	FRAME_RESULT_UNSUPPORTED = "unsupported"
)

// Server accepts Modbus TCP connections and hands every decoded frame to the
// fleet. Each connection is served by its own goroutine.
type Server struct {
	cfg     config.MasterConfig
	fleet   port.Fleet
	ln      net.Listener
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *ConnectionLimiter
	metrics *metrics.MasterMetrics
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[string]net.Conn
}

func New(cfg config.MasterConfig, fleet port.Fleet, masterMetrics *metrics.MasterMetrics, logger *zap.Logger) *Server {
	if masterMetrics == nil {
		masterMetrics = metrics.NewNopMasterMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		fleet:   fleet,
		ctx:     ctx,
		cancel:  cancel,
		limiter: NewConnectionLimiter(cfg.MaxConnections),
		metrics: masterMetrics,
		logger:  logger.With(zap.String("component", "modbustcp")),
		conns:   make(map[string]net.Conn),
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("modbus listener started", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.limiter.TryAcquire() {
			s.metrics.TCPRejected.Inc()
			s.logger.Warn("connection rejected, limit reached", zap.String("remote", conn.RemoteAddr().String()),
				zap.Int("max", s.limiter.MaxConnections()))
			_ = conn.Close()
			continue
		}
		s.metrics.TCPAccepted.Inc()
		s.metrics.TCPActive.Inc()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.metrics.TCPActive.Dec()
			defer s.limiter.Release()
			s.serve(c)
		}(conn)
	}
}

func (s *Server) track(id string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = conn
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// serve reads the byte stream of one connection, cuts it into frames and
// answers them in order. Frames may arrive fragmented or coalesced.
func (s *Server) serve(conn net.Conn) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("conn", id), zap.String("remote", conn.RemoteAddr().String()))
	s.track(id, conn)
	defer s.untrack(id)
	defer conn.Close()
	logger.Info("connection opened")

	var limiter *rate.Limiter
	if s.cfg.FrameRateLimit > 0 {
		burst := s.cfg.FrameBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.cfg.FrameRateLimit), burst)
	}

	buf := make([]byte, READ_BUFFER_SIZE)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.metrics.TCPBytesReceived.Add(float64(n))
			pending = append(pending, buf[:n]...)
			frames, rest, serr := mbframe.SplitStream(pending)
			if serr != nil {
				logger.Warn("stream out of sync, buffer dropped", zap.Error(serr))
			}
			pending = rest
			for _, raw := range frames {
				if limiter != nil {
					if werr := limiter.Wait(s.ctx); werr != nil {
						return
					}
				}
				if !s.handleFrame(conn, id, raw, logger) {
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("connection closed by peer")
			} else if s.ctx.Err() != nil {
				logger.Debug("connection closed on shutdown")
			} else {
				logger.Error("connection read", zap.Error(err))
			}
			return
		}
	}
}

// handleFrame returns false when the connection must be torn down.
func (s *Server) handleFrame(conn net.Conn, id string, raw []byte, logger *zap.Logger) bool {
	frame, err := mbframe.Decode(raw)
	if err != nil {
		s.metrics.FrameTotal.WithLabelValues("unknown", FRAME_RESULT_MALFORMED).Inc()
		logger.Warn("malformed frame dropped", zap.Error(err))
		return true
	}
	function := mbframe.FunctionName(frame.FunctionCode)
	if !mbframe.IsSupported(frame.FunctionCode) {
		function = "unknown"
	}

	ctx, cancel := context.WithTimeout(s.ctx, APPLY_TIMEOUT)
	resp, err := s.fleet.Apply(ctx, id, frame)
	cancel()
	if err != nil {
		result := FRAME_RESULT_REJECTED
		if errors.Is(err, mbframe.ErrUnsupportedFunction) {
			result = FRAME_RESULT_UNSUPPORTED
		}
		s.metrics.FrameTotal.WithLabelValues(function, result).Inc()
		logger.Debug("frame dropped without response", zap.String("function", function), zap.Error(err))
		return true
	}
	s.metrics.FrameTotal.WithLabelValues(function, FRAME_RESULT_OK).Inc()
	if resp == nil {
		return true
	}
	if _, err := conn.Write(mbframe.Encode(*resp)); err != nil {
		logger.Error("connection write", zap.Error(err))
		return false
	}
	return true
}

// Shutdown stops accepting, closes open connections and waits for their
// handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
