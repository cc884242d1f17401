package render

// codeDescriptions maps ICMP type and code to a human-readable reason.
var codeDescriptions = map[uint8]map[uint8]string{
	3: {
		0:  "network unreachable",
		1:  "host unreachable",
		2:  "protocol unreachable",
		3:  "port unreachable",
		4:  "fragmentation needed and DF set",
		5:  "source route failed",
		6:  "destination network unknown",
		7:  "destination host unknown",
		8:  "source host isolated",
		9:  "destination network administratively prohibited",
		10: "destination host administratively prohibited",
		11: "network unreachable for TOS",
		12: "host unreachable for TOS",
		13: "communication administratively prohibited",
		14: "host precedence violation",
		15: "precedence cutoff in effect",
	},
	5: {
		0: "redirect for network",
		1: "redirect for host",
		2: "redirect for TOS and network",
		3: "redirect for TOS and host",
	},
	11: {
		0: "TTL exceeded in transit",
		1: "fragment reassembly time exceeded",
	},
	12: {
		0: "pointer indicates the error",
		1: "missing a required option",
		2: "bad length",
	},
}

// Describe returns the reason associated with an ICMP type and code, or
// "" when there is none.
func Describe(typ, code uint8) string {
	return codeDescriptions[typ][code]
}
