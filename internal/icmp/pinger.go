package icmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/netip"

	"github.com/postalsys/rawicmp/internal/logging"
	"github.com/postalsys/rawicmp/internal/metrics"
	"github.com/postalsys/rawicmp/internal/packet"
)

// ErrDestinationNotAllowed is returned when the destination is outside the allow-list.
var ErrDestinationNotAllowed = errors.New("destination not allowed")

// Sink sends one built IP datagram.
type Sink interface {
	SendPacket(pkt []byte, dst netip.Addr) error
}

// Request describes a single echo request.
type Request struct {
	Source      netip.Addr
	Destination netip.Addr
	ID          uint16
	Seq         uint16
	Payload     []byte
}

// Pinger builds echo requests and hands them to a Sink.
type Pinger struct {
	sink    Sink
	cfg     PingConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPinger creates a Pinger. A nil m uses the default metrics instance.
func NewPinger(sink Sink, cfg PingConfig, m *metrics.Metrics, logger *slog.Logger) *Pinger {
	if m == nil {
		m = metrics.Default()
	}
	return &Pinger{
		sink:    sink,
		cfg:     cfg,
		metrics: m,
		logger:  logging.Component(logger, "pinger"),
	}
}

// Send builds one echo request and sends it exactly once. Nothing reaches
// the sink when the destination is refused or the request cannot be built.
func (p *Pinger) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !p.cfg.Allowed(req.Destination) {
		p.metrics.RecordSendError("denied")
		return fmt.Errorf("%w: %s", ErrDestinationNotAllowed, req.Destination)
	}

	pkt, err := packet.BuildEchoRequest(req.Source, req.Destination, req.ID, req.Seq, req.Payload)
	if err != nil {
		p.metrics.RecordSendError("invalid_input")
		return err
	}

	if err := p.sink.SendPacket(pkt, req.Destination); err != nil {
		p.metrics.RecordSendError("socket")
		return fmt.Errorf("send echo request: %w", err)
	}

	p.metrics.RecordSent(len(pkt))
	p.logger.Info("echo request sent",
		logging.KeySource, req.Source,
		logging.KeyDest, req.Destination,
		logging.KeyID, req.ID,
		logging.KeySeq, req.Seq,
		logging.KeyLength, len(pkt))
	return nil
}

// RandomIdentifier returns a non-zero echo identifier.
func RandomIdentifier() uint16 {
	return uint16(rand.IntN(0xffff)) + 1
}
