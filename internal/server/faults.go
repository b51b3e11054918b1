package server

import (
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/config"
)

// faultPolicy is the resolved, default-off fault injection layer carried
// from the teacher (SPEC_FULL §12): artificial response latency, dropped
// responses, closed connections, and fragmented writes, used to exercise
// the Stream Reassembler's resync behavior and client tolerance for
// partial writes.
type faultPolicy struct {
	enabled bool

	latencyBase   time.Duration
	latencyJitter time.Duration
	spikeEveryN   int
	spikeDelay    time.Duration

	dropEveryN  int
	closeEveryN int

	chunkWrites     bool
	chunkMin        int
	chunkMax        int
	interChunkDelay time.Duration

	mu            sync.Mutex
	rng           *rand.Rand
	responseCount int
}

// responseFaultAction is the decision made for one outgoing response.
type responseFaultAction struct {
	drop    bool
	delay   time.Duration
	close   bool
	chunked bool
}

// resolveFaultPolicy builds a faultPolicy from config, applying the
// teacher's chunk-size defaults when fragmentation is enabled but unsized.
func resolveFaultPolicy(cfg *config.ServerConfig) *faultPolicy {
	seed := cfg.Server.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	chunkMin := cfg.Faults.TCP.ChunkMin
	chunkMax := cfg.Faults.TCP.ChunkMax
	if chunkMin == 0 {
		chunkMin = 1
	}
	if chunkMax == 0 {
		chunkMax = 4
	}
	if chunkMax < chunkMin {
		chunkMax = chunkMin
	}

	return &faultPolicy{
		enabled:         cfg.Faults.Enable,
		latencyBase:     time.Duration(cfg.Faults.Latency.BaseDelayMs) * time.Millisecond,
		latencyJitter:   time.Duration(cfg.Faults.Latency.JitterMs) * time.Millisecond,
		spikeEveryN:     cfg.Faults.Latency.SpikeEveryN,
		spikeDelay:      time.Duration(cfg.Faults.Latency.SpikeDelayMs) * time.Millisecond,
		dropEveryN:      cfg.Faults.Reliability.DropResponseEveryN,
		closeEveryN:     cfg.Faults.Reliability.CloseConnectionEveryN,
		chunkWrites:     cfg.Faults.TCP.ChunkWrites,
		chunkMin:        chunkMin,
		chunkMax:        chunkMax,
		interChunkDelay: time.Duration(cfg.Faults.TCP.InterChunkDelayMs) * time.Millisecond,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// nextResponseFaultAction decides what to do with the next outgoing
// response. With faults disabled it still honors chunkWrites, which is
// harmless fragmentation rather than a fault.
func (s *Server) nextResponseFaultAction() responseFaultAction {
	if !s.faults.enabled {
		return responseFaultAction{chunked: s.faults.chunkWrites}
	}

	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()

	s.faults.responseCount++
	count := s.faults.responseCount
	delay := s.faults.latencyBase
	if s.faults.latencyJitter > 0 {
		delay += time.Duration(s.faults.rng.Int63n(int64(s.faults.latencyJitter) + 1))
	}
	if s.faults.spikeEveryN > 0 && count%s.faults.spikeEveryN == 0 {
		delay += s.faults.spikeDelay
	}

	drop := s.faults.dropEveryN > 0 && count%s.faults.dropEveryN == 0
	closeConn := s.faults.closeEveryN > 0 && count%s.faults.closeEveryN == 0

	return responseFaultAction{
		drop:    drop,
		delay:   delay,
		close:   closeConn,
		chunked: s.faults.chunkWrites,
	}
}

// writeResponse writes resp to conn subject to the fault policy, replacing
// a plain conn.Write in handleConnection.
func (s *Server) writeResponse(conn *net.TCPConn, remoteAddr string, resp []byte) error {
	action := s.nextResponseFaultAction()
	if action.delay > 0 {
		time.Sleep(action.delay)
	}

	if action.drop {
		if action.close {
			_ = conn.Close()
			return io.EOF
		}
		return nil
	}

	if action.chunked {
		if err := s.writeChunks(conn, resp); err != nil {
			s.logger.Error("write response error to %s: %v", remoteAddr, err)
			return err
		}
	} else if _, err := conn.Write(resp); err != nil {
		return err
	}

	if action.close {
		_ = conn.Close()
		return io.EOF
	}
	return nil
}

// writeChunks fragments resp across a random number of TCP writes between
// chunkMin and chunkMax, pausing interChunkDelay between them.
func (s *Server) writeChunks(conn *net.TCPConn, resp []byte) error {
	if len(resp) == 0 {
		return nil
	}

	s.faults.mu.Lock()
	chunks := s.faults.chunkMin
	if s.faults.chunkMax > s.faults.chunkMin {
		chunks = s.faults.chunkMin + s.faults.rng.Intn(s.faults.chunkMax-s.faults.chunkMin+1)
	}
	delay := s.faults.interChunkDelay
	s.faults.mu.Unlock()

	if chunks <= 1 {
		_, err := conn.Write(resp)
		return err
	}

	size := (len(resp) + chunks - 1) / chunks
	offset := 0
	for offset < len(resp) {
		end := offset + size
		if end > len(resp) {
			end = len(resp)
		}
		if _, err := conn.Write(resp[offset:end]); err != nil {
			return err
		}
		offset = end
		if delay > 0 && offset < len(resp) {
			time.Sleep(delay)
		}
	}
	return nil
}
