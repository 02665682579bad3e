package depthstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/klauspost/compress/zstd"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/sensor"
)

// maxFrameSize bounds the decompressed size of a frame.
const maxFrameSize = 64 << 20

// Client is a sensor replaying the events multicast by a Server.
type Client struct {
	conn    io.ReadCloser
	log     *slog.Logger
	metrics *metrics.Metrics

	decoder     *zstd.Decoder
	reassembler Reassembler

	handlers   sensor.Handlers
	handlersMu sync.RWMutex

	thresholds   depth.Thresholds
	thresholdsMu sync.RWMutex
}

func NewClient(addr netip.AddrPort, iface *net.Interface, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	conn, err := net.ListenMulticastUDP("udp4", iface, net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("could not listen on multicast address: %w", err)
	}
	conn.SetReadBuffer(4 * MaxDatagramSize)

	c, err := newClient(conn, log, m)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

func newClient(conn io.ReadCloser, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameSize), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("could not create decoder: %w", err)
	}

	return &Client{
		conn:       conn,
		log:        log,
		metrics:    m,
		decoder:    decoder,
		thresholds: depth.DefaultThresholds,
	}, nil
}

func (c *Client) SetHandlers(h sensor.Handlers) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.handlers = h
}

// DepthRange returns the range carried by the last frame received.
func (c *Client) DepthRange() depth.Thresholds {
	c.thresholdsMu.RLock()
	defer c.thresholdsMu.RUnlock()

	return c.thresholds
}

func (c *Client) Close() error {
	c.decoder.Close()
	return c.conn.Close()
}

// Run receives datagrams and dispatches every complete frame until the context
// is done or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	datagrams := make(chan []byte)
	connStopped := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go c.consumeConn(datagrams, connStopped, done)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-connStopped:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error while reading from udp: %w", err)

		case b := <-datagrams:
			c.handleDatagram(b)
		}
	}
}

func (c *Client) consumeConn(datagrams chan<- []byte, stopped chan<- error, done <-chan struct{}) {
	b := make([]byte, MaxDatagramSize)

	for {
		n, err := c.conn.Read(b)
		if err != nil {
			stopped <- err
			return
		}

		select {
		case datagrams <- bytes.Clone(b[:n]):
		case <-done:
			return
		}
	}
}

func (c *Client) handleDatagram(b []byte) {
	chunk, err := DecodeChunk(b)
	if err != nil {
		c.drop("could not decode datagram", err)
		return
	}

	compressed, err := c.reassembler.Add(chunk)
	if err != nil {
		c.drop("could not reassemble frame", err)
		return
	}
	if compressed == nil {
		return
	}

	raw, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		c.drop("could not decompress frame", err)
		return
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		c.drop("could not decode frame", err)
		return
	}

	c.dispatch(frame)
}

func (c *Client) drop(msg string, err error) {
	c.metrics.IncDatagramsDropped()

	if errors.Is(err, ErrStaleChunk) {
		c.log.Debug(msg, "error", err)
		return
	}
	c.log.Warn(msg, "error", err)
}

func (c *Client) dispatch(f Frame) {
	if f.Thresholds.Far != 0 {
		c.thresholdsMu.Lock()
		c.thresholds = f.Thresholds
		c.thresholdsMu.Unlock()
	}

	e := &sensor.Event{}
	if f.Color != nil {
		e.Color = sensor.NewColorFrame(f.Color.Width, f.Color.Height, f.Color.Pix, nil)
	}
	if f.Depth != nil {
		mapper := sensor.NewProjection(f.Depth.Width, f.Depth.Height)
		e.Depth = sensor.NewDepthFrame(f.Depth.Width, f.Depth.Height, f.Depth.Samples, mapper, nil)
	}
	// An empty skeleton frame clears the overlays.
	e.Skeletons = sensor.NewSkeletonFrame(f.Skeletons, nil)

	c.handlersMu.RLock()
	h := c.handlers
	c.handlersMu.RUnlock()

	sensor.Dispatch(h, e)
}
