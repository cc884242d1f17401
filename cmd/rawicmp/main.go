// Package main provides the CLI entry point for rawicmp.
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/postalsys/rawicmp/internal/config"
	"github.com/postalsys/rawicmp/internal/icmp"
	"github.com/postalsys/rawicmp/internal/logging"
	"github.com/postalsys/rawicmp/internal/packet"
	"github.com/postalsys/rawicmp/internal/render"
)

var (
	// Version is set at build time
	Version = "dev"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "rawicmp",
		Short: "rawicmp - raw ICMP echo sender and packet sniffer",
		Long: `rawicmp builds ICMP Echo Requests with hand-constructed IPv4 headers,
sends them over a raw socket, and decodes captured ICMP datagrams into a
field-by-field diagnostic report.

Raw sockets require root or CAP_NET_RAW.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text, json")

	cmd.AddCommand(pingCmd(&g))
	cmd.AddCommand(sniffCmd(&g))
	cmd.AddCommand(decodeCmd(&g))

	return cmd
}

// load reads the configuration and applies the global flag overrides.
func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.NewLogger(cfg.Log.Level, cfg.Log.Format), nil
}

func pingCmd(g *globalFlags) *cobra.Command {
	var (
		source       string
		id           uint16
		seq          uint16
		size         int
		unprivileged bool
	)

	cmd := &cobra.Command{
		Use:   "ping <host>",
		Short: "Send a single ICMP echo request",
		Long: `Build one ICMP Echo Request with an explicit IPv4 header and send it.

By default a header-included raw socket is used, so the datagram goes out
exactly as built. With --unprivileged the ICMP part is sent over a ping
socket and the kernel supplies the IP header and identifier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Ping.Source = source
			}
			if flags.Changed("id") {
				cfg.Ping.Identifier = id
			}
			if flags.Changed("seq") {
				cfg.Ping.Sequence = seq
			}
			if flags.Changed("size") {
				cfg.Ping.PayloadSize = size
			}
			if flags.Changed("unprivileged") {
				cfg.Ping.Unprivileged = unprivileged
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			dst, err := resolveIPv4(args[0])
			if err != nil {
				return err
			}
			src := netip.IPv4Unspecified()
			if cfg.Ping.Source != "" {
				src = netip.MustParseAddr(cfg.Ping.Source).Unmap()
			}

			cidrs, err := icmp.ParseCIDRs(cfg.Ping.AllowedCIDRs)
			if err != nil {
				return err
			}

			var sink interface {
				icmp.Sink
				Close() error
			}
			if cfg.Ping.Unprivileged {
				sink, err = icmp.NewEchoSocket(cfg.Ping.Source)
			} else {
				sink, err = icmp.OpenRawSocket(icmp.RawSocketOptions{HeaderIncluded: true})
			}
			if err != nil {
				return err
			}
			defer sink.Close()

			ident := cfg.Ping.Identifier
			if ident == 0 {
				ident = icmp.RandomIdentifier()
			}

			req := icmp.Request{
				Source:      src,
				Destination: dst,
				ID:          ident,
				Seq:         cfg.Ping.Sequence,
				Payload:     packet.IncrementingPayload(cfg.Ping.PayloadSize),
			}

			pinger := icmp.NewPinger(sink, icmp.PingConfig{AllowedCIDRs: cidrs}, nil, logger)
			if err := pinger.Send(cmd.Context(), req); err != nil {
				return err
			}

			fmt.Printf("Sent %d bytes to %s (id=%d, seq=%d)\n",
				packet.IPv4HeaderLen+packet.ICMPHeaderLen+len(req.Payload), dst, req.ID, req.Seq)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source IPv4 address (0.0.0.0 lets the kernel choose)")
	cmd.Flags().Uint16Var(&id, "id", 0, "Echo identifier (0 picks a random one)")
	cmd.Flags().Uint16Var(&seq, "seq", 0, "Echo sequence number")
	cmd.Flags().IntVarP(&size, "size", "s", 12, "Payload size in bytes")
	cmd.Flags().BoolVar(&unprivileged, "unprivileged", false, "Send over an unprivileged ping socket")

	return cmd
}

func decodeCmd(g *globalFlags) *cobra.Command {
	var (
		hexInput  string
		pcapPath  string
		threshold int
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a stored datagram or capture file",
		Long: `Decode an IPv4 ICMP datagram given as hex, or every ICMP datagram in a
pcap file, and print the diagnostic report.

Hex input may separate bytes with colons or whitespace.`,
		Example: `  rawicmp decode --hex 45:00:00:28:00:00:00:00:40:01:00:00:c0:a8:01:0a:08:08:08:08:08:00:c7:a6:12:34:00:01:00:01:02:03:04:05:06:07:08:09:0a:0b
  rawicmp decode --pcap capture.pcap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Sniff.TruncateThreshold = threshold
			}

			switch {
			case hexInput != "" && pcapPath != "":
				return fmt.Errorf("--hex and --pcap are mutually exclusive")
			case hexInput != "":
				return decodeHex(cmd, cfg, hexInput)
			case pcapPath != "":
				return replayPcap(cmd.Context(), cfg, logger, pcapPath, cmd.OutOrStdout())
			default:
				return fmt.Errorf("one of --hex or --pcap is required")
			}
		},
	}

	cmd.Flags().StringVar(&hexInput, "hex", "", "Datagram bytes as hex")
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "Read datagrams from a pcap file")
	cmd.Flags().IntVar(&threshold, "threshold", render.DefaultThreshold, "Payloads of packets longer than this are summarised")

	return cmd
}

func decodeHex(cmd *cobra.Command, cfg *config.Config, input string) error {
	raw, err := parseHex(input)
	if err != nil {
		return err
	}

	p, err := packet.Parse(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	r := render.New(render.Options{
		Threshold: cfg.Sniff.TruncateThreshold,
		Color:     useColor(cfg.Sniff.Color, os.Stdout),
	})
	fmt.Fprint(cmd.OutOrStdout(), r.Render(p, len(raw)))

	if cfg.Sniff.VerifyChecksums {
		if err := p.VerifyChecksum(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: icmp %v\n", err)
		}
		if err := p.VerifyHeaderChecksum(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: ip %v\n", err)
		}
	}
	return nil
}

// parseHex accepts "45:00:...", "45 00 ..." or "4500...".
func parseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(strings.ToLower(clean), "0x")

	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

func resolveIPv4(host string) (netip.Addr, error) {
	ipAddr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	addr, ok := netip.AddrFromSlice(ipAddr.IP.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("resolve %s: no IPv4 address", host)
	}
	return addr, nil
}

// useColor resolves a color mode for f.
func useColor(mode string, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return term.IsTerminal(int(f.Fd()))
	}
}
