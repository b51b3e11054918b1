// Package server implements the TCP/UDP listener, the Stream Reassembler
// wiring, the Encapsulation Dispatcher, and the CIP Dispatcher that
// together form the EtherNet/IP simulator's core (spec §4, §5).
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/diag"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/enip"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/logging"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/metrics"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/session"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/svcerr"
	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/tagstore"
)

// Server owns the shared Session Registry and Tag Store and distributes
// references to per-connection handlers (spec §9 "Shared mutable state
// without global singletons" — both are passed in explicitly, never held
// as package-level globals).
type Server struct {
	cfg    *config.ServerConfig
	logger *logging.Logger

	sessions *session.Registry
	tags     *tagstore.Store
	cip      *CIPDispatcher
	encap    *EncapDispatcher
	metrics  *metrics.Registry
	pcap     *diag.Writer
	faults   *faultPolicy

	tcpListener *net.TCPListener
	udpConn     *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	now func() time.Time
}

// Options carries the non-config construction inputs.
type Options struct {
	PcapPath string // optional; enables wire diagnostics (SPEC_FULL §10.7)
}

// New builds a Server ready to Start. It never opens a socket itself.
func New(cfg *config.ServerConfig, logger *logging.Logger, opts Options) (*Server, error) {
	tags := tagstore.NewStore(cfg.Tags.Count, cfg.Server.RNGSeed)
	sessions := session.NewRegistry()
	metricsReg := metrics.NewRegistry()

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		tags:     tags,
		metrics:  metricsReg,
		faults:   resolveFaultPolicy(cfg),
		now:      time.Now,
	}
	s.encap = &EncapDispatcher{srv: s}
	s.cip = NewCIPDispatcher(cfg, tags, sessions.Count, logger)
	s.cip.OnTagRead = metricsReg.TagReadsTotal.Inc

	if opts.PcapPath != "" {
		ip := net.ParseIP(cfg.Server.ListenIP)
		if ip == nil {
			ip = net.IPv4zero
		}
		w, err := diag.NewWriter(opts.PcapPath, ip, uint16(cfg.Server.TCPPort))
		if err != nil {
			return nil, svcerr.WrapPcapError(err, opts.PcapPath)
		}
		s.pcap = w
	}

	return s, nil
}

// TCPAddr returns the bound TCP address after Start.
func (s *Server) TCPAddr() *net.TCPAddr {
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr().(*net.TCPAddr)
}

// Metrics exposes the server's Prometheus registry for the metrics HTTP
// endpoint (SPEC_FULL §10.6).
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Start binds the TCP (and, if enabled, UDP) listeners and launches the
// accept loop, UDP stub, and session-sweep ticker as supervised
// goroutines (SPEC_FULL §10.9).
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(s.ctx)
	s.eg = eg
	s.ctx = egCtx

	lc := net.ListenConfig{Control: setReuseAddr}
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenIP, s.cfg.Server.TCPPort)
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return svcerr.WrapBindError(err, s.cfg.Server.ListenIP, s.cfg.Server.TCPPort)
	}
	s.tcpListener = ln.(*net.TCPListener)
	s.logger.LogStartup(s.cfg.Server.Name, s.cfg.Server.ListenIP, s.cfg.Server.TCPPort, s.cfg.Server.UDPPort, "")

	if s.cfg.Server.EnableUDP {
		udpAddr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenIP, s.cfg.Server.UDPPort)
		conn, err := net.ListenPacket("udp", udpAddr)
		if err != nil {
			return svcerr.WrapBindError(err, s.cfg.Server.ListenIP, s.cfg.Server.UDPPort)
		}
		s.udpConn = conn.(*net.UDPConn)
		eg.Go(func() error { return s.udpStubLoop() })
	}

	eg.Go(func() error { return s.acceptLoop() })
	eg.Go(func() error { return s.sweepLoop() })

	return nil
}

// Wait blocks until every supervised goroutine returns, which happens
// once Stop cancels the context.
func (s *Server) Wait() error {
	return s.eg.Wait()
}

// Stop triggers a graceful shutdown: cancel the context, close the
// listeners (which unblocks Accept/ReadFrom), and let Wait drain.
func (s *Server) Stop() {
	s.cancel()
	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.udpConn != nil {
		s.udpConn.Close()
	}
	if s.pcap != nil {
		s.pcap.Close()
	}
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.tcpListener.AcceptTCP()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConnection(conn)
	}
}

// udpStubLoop implements the UDP "implicit messaging" stub: it reads
// datagrams, performs no parsing, and sends no replies (spec §6).
func (s *Server) udpStubLoop() error {
	buf := make([]byte, 2048)
	for {
		_, _, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Server) sweepLoop() error {
	interval := time.Duration(s.cfg.Session.SweepIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 60 * time.Second
	}
	idle := time.Duration(s.cfg.Session.IdleTimeoutMs) * time.Millisecond
	if idle <= 0 {
		idle = 300 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case now := <-ticker.C:
			removed := s.sessions.Sweep(now, idle)
			if removed > 0 {
				s.logger.Verbose("swept %d idle sessions", removed)
				for i := 0; i < removed; i++ {
					s.metrics.SessionsActive.Dec()
				}
			}
		}
	}
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer conn.Close()
	remoteAddr := conn.RemoteAddr().String()
	remoteTCPAddr, _ := conn.RemoteAddr().(*net.TCPAddr)
	s.logger.Info("new connection from %s", remoteAddr)
	defer func() {
		removed := s.sessions.RemoveAllForAddr(remoteAddr)
		for i := 0; i < removed; i++ {
			s.metrics.SessionsActive.Dec()
		}
		s.logger.Info("connection closed: %s", remoteAddr)
	}()

	reassembler := enip.NewReassembler()
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, err := conn.Read(readBuf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		reassembler.Feed(readBuf[:n])

		for {
			frame, ok, dropped := reassembler.Next()
			if dropped {
				s.logger.Error("unrecoverable framing from %s, dropping buffer", remoteAddr)
				continue
			}
			if !ok {
				break
			}

			reqID := xid.New().String()
			if s.pcap != nil && remoteTCPAddr != nil {
				if err := s.pcap.WriteFrame(diag.DirectionInbound, remoteTCPAddr, frame.Bytes); err != nil {
					s.logger.Error("pcap write failed: %v", err)
				}
			}

			pkt, err := enip.DecodePacket(frame.Order, frame.Bytes)
			if err != nil {
				s.logger.Debug("[%s] malformed frame from %s: %v", reqID, remoteAddr, err)
				continue
			}

			s.logger.Debug("[%s] command 0x%04X from %s", reqID, pkt.Header.Command, remoteAddr)
			resp := s.encap.handle(pkt, frame.Order, remoteAddr)

			if err := s.writeResponse(conn, remoteAddr, resp); err != nil {
				return
			}
			if s.pcap != nil && remoteTCPAddr != nil {
				if err := s.pcap.WriteFrame(diag.DirectionOutbound, remoteTCPAddr, resp); err != nil {
					s.logger.Error("pcap write failed: %v", err)
				}
			}
		}
	}
}
