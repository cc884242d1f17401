package icmp

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/postalsys/rawicmp/internal/packet"
)

// Stats accumulates receive loop counters. Safe for concurrent use so a
// health endpoint can read while the loop writes.
type Stats struct {
	started time.Time

	received           atomic.Uint64
	bytes              atomic.Uint64
	decoded            atomic.Uint64
	checksumMismatches atomic.Uint64
	readErrors         atomic.Uint64

	mu          sync.Mutex
	byType      map[uint8]uint64
	parseErrors map[string]uint64
}

// NewStats returns an empty Stats with the clock started now.
func NewStats() *Stats {
	return &Stats{
		started:     time.Now(),
		byType:      make(map[uint8]uint64),
		parseErrors: make(map[string]uint64),
	}
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	PacketsReceived    uint64
	BytesReceived      uint64
	PacketsDecoded     uint64
	ParseErrors        uint64
	ChecksumMismatches uint64
	ReadErrors         uint64
	ByType             map[uint8]uint64
	ErrorsByKind       map[string]uint64
	Uptime             time.Duration
}

func (s *Stats) recordReceived(n int) {
	s.received.Add(1)
	s.bytes.Add(uint64(n))
}

func (s *Stats) recordDecoded(icmpType uint8) {
	s.decoded.Add(1)
	s.mu.Lock()
	s.byType[icmpType]++
	s.mu.Unlock()
}

func (s *Stats) recordParseError(kind string) {
	s.mu.Lock()
	s.parseErrors[kind]++
	s.mu.Unlock()
}

func (s *Stats) recordChecksumMismatch() {
	s.checksumMismatches.Add(1)
}

func (s *Stats) recordReadError() {
	s.readErrors.Add(1)
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	byType := maps.Clone(s.byType)
	byKind := maps.Clone(s.parseErrors)
	s.mu.Unlock()

	var parseErrors uint64
	for _, n := range byKind {
		parseErrors += n
	}

	return Snapshot{
		PacketsReceived:    s.received.Load(),
		BytesReceived:      s.bytes.Load(),
		PacketsDecoded:     s.decoded.Load(),
		ParseErrors:        parseErrors,
		ChecksumMismatches: s.checksumMismatches.Load(),
		ReadErrors:         s.readErrors.Load(),
		ByType:             byType,
		ErrorsByKind:       byKind,
		Uptime:             time.Since(s.started),
	}
}

// WriteTable renders the snapshot as a table.
func (snap Snapshot) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"counter", "value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"packets received", humanize.Comma(int64(snap.PacketsReceived))})
	table.Append([]string{"bytes received", humanize.IBytes(snap.BytesReceived)})
	table.Append([]string{"packets decoded", humanize.Comma(int64(snap.PacketsDecoded))})
	for _, t := range slices.Sorted(maps.Keys(snap.ByType)) {
		label := fmt.Sprintf("  type %d (%s)", t, packet.TypeName(t))
		table.Append([]string{label, humanize.Comma(int64(snap.ByType[t]))})
	}
	table.Append([]string{"parse errors", humanize.Comma(int64(snap.ParseErrors))})
	for _, kind := range slices.Sorted(maps.Keys(snap.ErrorsByKind)) {
		table.Append([]string{"  " + kind, humanize.Comma(int64(snap.ErrorsByKind[kind]))})
	}
	table.Append([]string{"checksum mismatches", humanize.Comma(int64(snap.ChecksumMismatches))})
	table.Append([]string{"read errors", humanize.Comma(int64(snap.ReadErrors))})
	table.Append([]string{"uptime", snap.Uptime.Round(time.Millisecond).String()})

	table.Render()
}
