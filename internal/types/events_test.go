package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRiskFor(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      RiskLevel
	}{
		{EventTypePortScan, RiskHigh},
		{EventTypeDDoS, RiskHigh},
		{EventTypeDataExfiltration, RiskMedium},
		{EventTypeNormalTraffic, RiskLow},
		{EventType("unknown"), RiskLow},
	}
	for _, tt := range tests {
		if got := RiskFor(tt.eventType); got != tt.want {
			t.Errorf("RiskFor(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestEventTypesAndProtocols(t *testing.T) {
	if len(EventTypes()) != 4 {
		t.Errorf("EventTypes: want 4, got %d", len(EventTypes()))
	}
	if len(Protocols()) != 4 {
		t.Errorf("Protocols: want 4, got %d", len(Protocols()))
	}
}

func TestSyntheticEvent_JSONFieldNames(t *testing.T) {
	ev := SyntheticEvent{
		EventType:     EventTypeDDoS,
		Timestamp:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceIP:      "192.168.1.2",
		DestinationIP: "10.0.3.4",
		Protocol:      ProtocolUDP,
		Port:          53,
		PacketSize:    512,
		Frequency:     900,
		RiskLevel:     RiskHigh,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"event_type", "timestamp", "source_ip", "destination_ip", "protocol", "port", "packet_size", "frequency", "risk_level"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
}

func TestSyntheticEvent_Properties(t *testing.T) {
	ev := SyntheticEvent{
		EventType: EventTypePortScan, Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		SourceIP: "192.168.7.8", DestinationIP: "10.0.9.10", Protocol: ProtocolTCP,
		Port: 22, PacketSize: 64, Frequency: 10, RiskLevel: RiskHigh,
	}
	props := ev.Properties()
	if props["event_type"] != "port_scan" || props["risk_level"] != "high" || props["protocol"] != "TCP" {
		t.Errorf("Properties = %+v", props)
	}
	if props["timestamp"] != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp = %v", props["timestamp"])
	}
	if props["port"] != 22 {
		t.Errorf("port = %v", props["port"])
	}
}
