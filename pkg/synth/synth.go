package synth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/invisible-tech/network-event-observer/internal/types"
)

// Synthesizer produces synthetic network events from a random source.
// It is not safe for concurrent use; give each goroutine its own.
type Synthesizer struct {
	rnd *rand.Rand
	now func() time.Time
}

// New creates a Synthesizer. A nil rnd is replaced by a time-seeded source and a
// nil now by time.Now.
func New(rnd *rand.Rand, now func() time.Time) *Synthesizer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{rnd: rnd, now: now}
}

// NewSeeded creates a Synthesizer with a deterministic source.
func NewSeeded(seed int64, now func() time.Time) *Synthesizer {
	return New(rand.New(rand.NewSource(seed)), now)
}

// Generate returns a fresh event. It never fails.
func (s *Synthesizer) Generate() types.SyntheticEvent {
	eventTypes := types.EventTypes()
	protocols := types.Protocols()

	eventType := eventTypes[s.rnd.Intn(len(eventTypes))]
	return types.SyntheticEvent{
		EventType:     eventType,
		Timestamp:     s.now(),
		SourceIP:      fmt.Sprintf("192.168.%d.%d", s.octet(), s.octet()),
		DestinationIP: fmt.Sprintf("10.0.%d.%d", s.octet(), s.octet()),
		Protocol:      protocols[s.rnd.Intn(len(protocols))],
		Port:          s.between(types.MinPort, types.MaxPort),
		PacketSize:    s.between(types.MinPacketSize, types.MaxPacketSize),
		Frequency:     s.between(types.MinFrequency, types.MaxFrequency),
		RiskLevel:     types.RiskFor(eventType),
	}
}

func (s *Synthesizer) octet() int {
	return s.between(types.MinOctet, types.MaxOctet)
}

// between returns an int in [lo, hi].
func (s *Synthesizer) between(lo, hi int) int {
	return lo + s.rnd.Intn(hi-lo+1)
}
