package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postalsys/rawicmp/internal/config"
	"github.com/postalsys/rawicmp/internal/health"
	"github.com/postalsys/rawicmp/internal/icmp"
	"github.com/postalsys/rawicmp/internal/logging"
	"github.com/postalsys/rawicmp/internal/pcapio"
	"github.com/postalsys/rawicmp/internal/recovery"
)

func sniffCmd(g *globalFlags) *cobra.Command {
	var (
		pcapIn     string
		pcapOut    string
		threshold  int
		noVerify   bool
		color      string
		bufferSize int
		healthAddr string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Capture and decode ICMP datagrams",
		Long: `Read ICMP datagrams from a raw socket (or a pcap file) and print a
diagnostic report for each one, in arrival order.

Malformed datagrams are logged and counted; the capture continues.
A statistics table is printed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("write") {
				cfg.Sniff.PcapOut = pcapOut
			}
			if flags.Changed("threshold") {
				cfg.Sniff.TruncateThreshold = threshold
			}
			if flags.Changed("no-verify") {
				cfg.Sniff.VerifyChecksums = !noVerify
			}
			if flags.Changed("color") {
				cfg.Sniff.Color = color
			}
			if flags.Changed("buffer-size") {
				cfg.Sniff.BufferSize = bufferSize
			}
			if flags.Changed("health") {
				cfg.Health.Enabled = true
				cfg.Health.Address = healthAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var src icmp.Source
			if pcapIn != "" {
				f, err := os.Open(pcapIn)
				if err != nil {
					return fmt.Errorf("open capture: %w", err)
				}
				defer f.Close()
				if src, err = pcapio.NewReader(f); err != nil {
					return err
				}
			} else {
				sock, err := icmp.OpenRawSocket(icmp.RawSocketOptions{ReadTimeout: cfg.Sniff.ReadTimeout})
				if err != nil {
					return err
				}
				defer sock.Close()
				src = sock
			}

			snap, err := runSniffer(ctx, cfg, logger, src, cmd.OutOrStdout())
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr())
				snap.WriteTable(cmd.ErrOrStderr())
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&pcapIn, "pcap", "r", "", "Read datagrams from a pcap file instead of a raw socket")
	cmd.Flags().StringVarP(&pcapOut, "write", "w", "", "Also write every datagram read to this pcap file")
	cmd.Flags().IntVar(&threshold, "threshold", 84, "Payloads of packets longer than this are summarised")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip checksum verification")
	cmd.Flags().StringVar(&color, "color", config.ColorAuto, "Color output: auto, always, never")
	cmd.Flags().IntVar(&bufferSize, "buffer-size", 8192, "Receive buffer size")
	cmd.Flags().StringVar(&healthAddr, "health", ":9102", "Serve health and metrics endpoints on this address")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the statistics table on exit")

	return cmd
}

// replayPcap decodes every datagram in a capture file.
func replayPcap(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	r, err := pcapio.NewReader(f)
	if err != nil {
		return err
	}

	snap, err := runSniffer(ctx, cfg, logger, r, out)
	if r.Skipped() > 0 {
		logger.Info("skipped non-ICMP records", logging.KeyCount, r.Skipped())
	}
	logger.Info("capture decoded",
		logging.KeyPath, path,
		logging.KeyCount, snap.PacketsDecoded,
		"parse_errors", snap.ParseErrors,
		logging.KeyDuration, snap.Uptime)
	return err
}

// runSniffer wires a receive loop from cfg, runs it to completion and
// returns its final counters.
func runSniffer(ctx context.Context, cfg *config.Config, logger *slog.Logger, src icmp.Source, out io.Writer) (icmp.Snapshot, error) {
	scfg := icmp.SnifferConfig{
		BufferSize:       cfg.Sniff.BufferSize,
		VerifyChecksums:  cfg.Sniff.VerifyChecksums,
		Threshold:        cfg.Sniff.TruncateThreshold,
		Color:            useColor(cfg.Sniff.Color, os.Stdout),
		ErrorLogInterval: cfg.Sniff.ErrorLogInterval,
	}
	sniffer := icmp.NewSniffer(src, out, scfg, nil, logger)

	if cfg.Sniff.PcapOut != "" {
		f, err := os.Create(cfg.Sniff.PcapOut)
		if err != nil {
			return icmp.Snapshot{}, fmt.Errorf("create capture: %w", err)
		}
		defer f.Close()
		w, err := pcapio.NewWriter(f)
		if err != nil {
			return icmp.Snapshot{}, err
		}
		sniffer.SetTee(w)
	}

	status := &sniffStatus{sniffer: sniffer}
	if cfg.Health.Enabled {
		srv := health.NewServer(health.ServerConfig{
			Address:      cfg.Health.Address,
			ReadTimeout:  cfg.Health.ReadTimeout,
			WriteTimeout: cfg.Health.WriteTimeout,
		}, status)
		if err := srv.Start(); err != nil {
			return icmp.Snapshot{}, fmt.Errorf("start health server: %w", err)
		}
		defer srv.Stop()
		logger.Info("health server listening", logging.KeyAddress, srv.Address().String())
	}

	status.running.Store(true)
	err := <-recovery.Go(logger, "sniffer", func() error {
		return sniffer.Run(ctx)
	})
	status.running.Store(false)

	return sniffer.Stats().Snapshot(), err
}

// sniffStatus exposes a running Sniffer to the health server.
type sniffStatus struct {
	sniffer *icmp.Sniffer
	running atomic.Bool
}

func (s *sniffStatus) IsRunning() bool {
	return s.running.Load()
}

func (s *sniffStatus) Stats() health.Stats {
	snap := s.sniffer.Stats().Snapshot()
	return health.Stats{
		PacketsReceived:    snap.PacketsReceived,
		BytesReceived:      snap.BytesReceived,
		PacketsDecoded:     snap.PacketsDecoded,
		ParseErrors:        snap.ParseErrors,
		ChecksumMismatches: snap.ChecksumMismatches,
		ReadErrors:         snap.ReadErrors,
		UptimeSeconds:      snap.Uptime.Seconds(),
	}
}
