// Package depthstream multicasts sensor events over UDP and replays them on
// the receiving side as a sensor.
package depthstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"

	"github.com/klauspost/compress/zstd"

	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/sensor"
)

const streamSent = "stream"

// Server forwards every event of a source sensor to a multicast group.
type Server struct {
	conn    io.WriteCloser
	source  sensor.Sensor
	log     *slog.Logger
	metrics *metrics.Metrics

	encoder *zstd.Encoder
	seq     uint64
	buf     []byte
}

func NewServer(addr netip.AddrPort, source sensor.Sensor, log *slog.Logger, m *metrics.Metrics) (*Server, error) {
	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("could not dial udp address: %w", err)
	}
	conn.SetWriteBuffer(4 * MaxDatagramSize)

	s, err := newServer(conn, source, log, m)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func newServer(conn io.WriteCloser, source sensor.Sensor, log *slog.Logger, m *metrics.Metrics) (*Server, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("could not create encoder: %w", err)
	}

	s := &Server{
		conn:    conn,
		source:  source,
		log:     log,
		metrics: m,
		encoder: encoder,
	}
	source.SetHandlers(sensor.Handlers{AllFramesReady: s.send})

	return s, nil
}

// Close stops sending. The source sensor is left open.
func (s *Server) Close() error {
	s.encoder.Close()
	return s.conn.Close()
}

// Run drives the source sensor until it stops.
func (s *Server) Run(ctx context.Context) error {
	if err := s.source.Run(ctx); err != nil {
		return fmt.Errorf("source sensor stopped: %w", err)
	}
	return nil
}

func (s *Server) send(e *sensor.Event) {
	frame := FrameFromEvent(e, s.source.DepthRange())

	s.buf = frame.Encode(s.buf[:0])
	compressed := s.encoder.EncodeAll(s.buf, make([]byte, 0, len(s.buf)/2))

	s.seq++
	chunks := Split(s.seq, compressed)

	var datagram []byte
	for _, c := range chunks {
		datagram = c.Encode(datagram[:0])
		if _, err := s.conn.Write(datagram); err != nil {
			// Receivers drop the partial frame.
			s.log.Warn("could not write datagram", "seq", c.Seq, "index", c.Index, "error", err)
			return
		}
	}

	s.metrics.IncFrames(streamSent)
	s.log.Debug("frame sent", "seq", s.seq, "bytes", len(compressed), "datagrams", len(chunks))
}
