// Package types defines the synthetic network event shared by the generator,
// the prompt builder and the observation store.
package types

import "time"

// EventType classifies a synthetic network observation.
type EventType string

const (
	EventTypePortScan         EventType = "port_scan"
	EventTypeDDoS             EventType = "ddos"
	EventTypeNormalTraffic    EventType = "normal_traffic"
	EventTypeDataExfiltration EventType = "data_exfiltration"
)

// Protocol is the transport or application protocol of an event.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// RiskLevel is a coarse severity label derived from the event type.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Field bounds for synthesized events.
const (
	MinPort       = 1
	MaxPort       = 65535
	MinPacketSize = 64
	MaxPacketSize = 1500
	MinFrequency  = 1
	MaxFrequency  = 1000
	MinOctet      = 1
	MaxOctet      = 254
)

// EventTypes returns every event type in declaration order.
func EventTypes() []EventType {
	return []EventType{EventTypePortScan, EventTypeDDoS, EventTypeNormalTraffic, EventTypeDataExfiltration}
}

// Protocols returns every protocol in declaration order.
func Protocols() []Protocol {
	return []Protocol{ProtocolTCP, ProtocolUDP, ProtocolHTTP, ProtocolHTTPS}
}

// RiskFor maps an event type to its fixed risk level.
func RiskFor(t EventType) RiskLevel {
	switch t {
	case EventTypePortScan, EventTypeDDoS:
		return RiskHigh
	case EventTypeDataExfiltration:
		return RiskMedium
	default:
		return RiskLow
	}
}

// SyntheticEvent is a fabricated record resembling a network traffic observation.
// It is built once per loop iteration and passed by value.
type SyntheticEvent struct {
	EventType     EventType `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	SourceIP      string    `json:"source_ip"`
	DestinationIP string    `json:"destination_ip"`
	Protocol      Protocol  `json:"protocol"`
	Port          int       `json:"port"`
	PacketSize    int       `json:"packet_size"`
	Frequency     int       `json:"frequency"`
	RiskLevel     RiskLevel `json:"risk_level"`
}

// TimestampString renders the timestamp as ISO-8601.
func (e SyntheticEvent) TimestampString() string {
	return e.Timestamp.Format(time.RFC3339Nano)
}

// Properties flattens the event for attachment to an observation record.
func (e SyntheticEvent) Properties() map[string]interface{} {
	return map[string]interface{}{
		"event_type":     string(e.EventType),
		"timestamp":      e.TimestampString(),
		"source_ip":      e.SourceIP,
		"destination_ip": e.DestinationIP,
		"protocol":       string(e.Protocol),
		"port":           e.Port,
		"packet_size":    e.PacketSize,
		"frequency":      e.Frequency,
		"risk_level":     string(e.RiskLevel),
	}
}
