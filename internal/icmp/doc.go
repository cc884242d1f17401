// Package icmp drives the packet codec against real sockets.
//
// Two loops live here. A Sniffer reads one IP datagram at a time from a
// Source, decodes it with the packet package and writes the diagnostic
// report. A Pinger builds a single echo request and hands it to a Sink.
// Both are synchronous: nothing is buffered or reordered between reads.
//
// # Sockets
//
// RawSocket is an AF_INET/SOCK_RAW socket bound to protocol 1. Reads always
// include the IP header. With header inclusion enabled the whole built
// datagram is sent as is; otherwise the kernel writes the IP header and only
// the ICMP part is sent.
//
// EchoSocket is the unprivileged alternative for sending. On Linux it
// requires the ping_group_range sysctl:
//
//	sysctl -w net.ipv4.ping_group_range="0 65535"
//
// The kernel rewrites the echo identifier on such sockets.
//
// # Configuration
//
//	sniff:
//	  buffer_size: 8192
//	  read_timeout: 1s
//	  truncate_threshold: 84
//	  verify_checksums: true
//	ping:
//	  identifier: 0
//	  payload_size: 12
//	  allowed_cidrs: ["10.0.0.0/8"]
package icmp
