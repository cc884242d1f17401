package icmp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/postalsys/rawicmp/internal/logging"
	"github.com/postalsys/rawicmp/internal/metrics"
	"github.com/postalsys/rawicmp/internal/packet"
	"github.com/postalsys/rawicmp/internal/render"
)

// Source yields one IP datagram per read.
type Source interface {
	// ReadPacket reads one datagram into buf and returns its length.
	// It returns ErrReadTimeout when no datagram arrived in time and
	// io.EOF when the source is exhausted.
	ReadPacket(buf []byte) (int, error)
}

// PacketWriter receives a copy of every datagram read, before decoding.
type PacketWriter interface {
	WritePacket(data []byte) error
}

// Sniffer is the receive loop: read, decode, report.
type Sniffer struct {
	src      Source
	out      io.Writer
	tee      PacketWriter
	cfg      SnifferConfig
	renderer *render.Renderer
	metrics  *metrics.Metrics
	stats    *Stats
	logger   *slog.Logger
	errLog   *logging.Limited
}

// NewSniffer creates a receive loop reading from src and writing reports to out.
// A nil m uses the default metrics instance.
func NewSniffer(src Source, out io.Writer, cfg SnifferConfig, m *metrics.Metrics, logger *slog.Logger) *Sniffer {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if m == nil {
		m = metrics.Default()
	}
	logger = logging.Component(logger, "sniffer")

	return &Sniffer{
		src:      src,
		out:      out,
		cfg:      cfg,
		renderer: render.New(render.Options{Threshold: cfg.Threshold, Color: cfg.Color}),
		metrics:  m,
		stats:    NewStats(),
		logger:   logger,
		errLog:   logging.NewLimited(logger, cfg.ErrorLogInterval, 1),
	}
}

// SetTee sets a writer that receives every datagram read.
func (s *Sniffer) SetTee(w PacketWriter) {
	s.tee = w
}

// Stats returns the loop's counters.
func (s *Sniffer) Stats() *Stats {
	return s.stats
}

// Run reads datagrams until ctx is done, the source is exhausted or a read
// fails. Decode failures are logged and counted and never end the loop.
func (s *Sniffer) Run(ctx context.Context) error {
	buf := make([]byte, s.cfg.BufferSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := s.src.ReadPacket(buf)
		if err != nil {
			switch {
			case errors.Is(err, ErrReadTimeout):
				continue
			case errors.Is(err, io.EOF):
				return nil
			case ctx.Err() != nil:
				// source closed underneath us on shutdown
				return nil
			}
			s.stats.recordReadError()
			s.metrics.RecordReadError()
			return fmt.Errorf("read packet: %w", err)
		}

		if err := s.handle(buf[:n]); err != nil {
			return err
		}
	}
}

// handle processes one datagram. Only output failures are returned.
func (s *Sniffer) handle(raw []byte) error {
	s.stats.recordReceived(len(raw))
	s.metrics.RecordReceived(len(raw))

	if s.tee != nil {
		if err := s.tee.WritePacket(raw); err != nil {
			s.errLog.Warn("failed to write capture", logging.KeyError, err)
		}
	}

	p, err := packet.Parse(raw)
	if err != nil {
		kind := packet.ErrorKind(err)
		s.stats.recordParseError(kind)
		s.metrics.RecordParseError(kind)
		s.errLog.Warn("failed to decode packet",
			logging.KeyKind, kind,
			logging.KeyLength, len(raw),
			logging.KeyError, err)
		return nil
	}

	s.stats.recordDecoded(p.ICMP.Type)
	s.metrics.RecordDecoded(p.ICMP.Type)

	if s.cfg.VerifyChecksums {
		s.verify(p)
	}

	s.logger.Debug("packet decoded",
		logging.KeyLength, len(raw),
		logging.KeyICMPType, p.ICMP.Type,
		logging.KeyICMPCode, p.ICMP.Code,
		logging.KeySource, p.IP.Src,
		logging.KeyDest, p.IP.Dst)

	if _, err := io.WriteString(s.out, s.renderer.Render(p, len(raw))); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (s *Sniffer) verify(p *packet.Packet) {
	if err := p.VerifyChecksum(); err != nil {
		s.stats.recordChecksumMismatch()
		s.metrics.RecordChecksumMismatch("icmp")
		s.errLog.Warn("icmp checksum mismatch",
			logging.KeySource, p.IP.Src,
			logging.KeyICMPType, p.ICMP.Type,
			logging.KeyError, err)
	}
	if err := p.VerifyHeaderChecksum(); err != nil {
		s.stats.recordChecksumMismatch()
		s.metrics.RecordChecksumMismatch("ip")
		s.errLog.Warn("ip header checksum mismatch",
			logging.KeySource, p.IP.Src,
			logging.KeyError, err)
	}
}
