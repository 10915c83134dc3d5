// Package prompt renders synthetic events into analysis prompts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/invisible-tech/network-event-observer/internal/types"
	"github.com/invisible-tech/network-event-observer/pkg/inference"
)

// Build renders every field of the event into a request for a brief security
// assessment. Values are embedded as-is; nothing is validated.
func Build(e types.SyntheticEvent) string {
	var b strings.Builder
	b.WriteString("Analyze this network event:\n")
	fmt.Fprintf(&b, "Event Type: %s\n", e.EventType)
	fmt.Fprintf(&b, "Timestamp: %s\n", e.TimestampString())
	fmt.Fprintf(&b, "Source IP: %s\n", e.SourceIP)
	fmt.Fprintf(&b, "Destination IP: %s\n", e.DestinationIP)
	fmt.Fprintf(&b, "Protocol: %s\n", e.Protocol)
	fmt.Fprintf(&b, "Port: %d\n", e.Port)
	fmt.Fprintf(&b, "Packet Size: %d bytes\n", e.PacketSize)
	fmt.Fprintf(&b, "Frequency: %d\n", e.Frequency)
	fmt.Fprintf(&b, "Risk Level: %s\n", e.RiskLevel)
	b.WriteString("\nProvide a brief security assessment.\n")
	return b.String()
}

// Messages wraps a prompt as a single user turn.
func Messages(prompt string) []inference.Message {
	return []inference.Message{{Role: inference.RoleUser, Content: prompt}}
}
