// Package telemetry wires captured transcripts and capture counters
// out to external observability systems: a Redis pub/sub channel for
// completed pairing transcripts, and an InfluxDB bucket for per-session
// capture counters.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/pairing"
)

// PairingPublisher publishes completed pairing transcripts to a
// per-session Redis channel and deduplicates republication of the same
// exchange (keyed by its IN_RAND bytes) with SETNX.
type PairingPublisher struct {
	rdb       *redis.Client
	channel   string
	dedupeTTL time.Duration
	log       *logrus.Entry
}

// NewPairingPublisher returns a Publisher that announces transcripts on
// "pincrack:<sessionID>".
func NewPairingPublisher(rdb *redis.Client, sessionID string, log *logrus.Entry) *PairingPublisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PairingPublisher{
		rdb:       rdb,
		channel:   fmt.Sprintf("pincrack:%s", sessionID),
		dedupeTTL: 10 * time.Minute,
		log:       log.WithField("component", "telemetry"),
	}
}

var _ pairing.Publisher = (*PairingPublisher)(nil)

// PublishTranscript implements pairing.Publisher.
func (p *PairingPublisher) PublishTranscript(t pairing.Transcript) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dedupeKey := fmt.Sprintf("pincrack:seen:%x", t.Slots[pairing.SlotInRand])
	ok, err := p.rdb.SetNX(ctx, dedupeKey, 1, p.dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("telemetry: dedupe check: %w", err)
	}
	if !ok {
		p.log.Debug("transcript already published, skipping")
		return nil
	}

	payload := t.String("", "")
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("telemetry: publish: %w", err)
	}
	return nil
}
