package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/nopper/packet-manipulator/internal/pairing"
)

var _ pairing.Metrics = (*CaptureMetrics)(nil)

// CaptureMetrics records per-fragment and per-transcript counters to an
// InfluxDB bucket using the non-blocking write API, so a slow or
// unreachable metrics backend never stalls the decode loop.
type CaptureMetrics struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	sessionID string
	device    string
	log       *logrus.Entry
}

// NewCaptureMetrics opens a non-blocking write API against url/org/bucket
// using token for auth. Close must be called to flush pending points.
func NewCaptureMetrics(url, token, org, bucket, sessionID, device string, log *logrus.Entry) *CaptureMetrics {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	client := influxdb2.NewClient(url, token)
	return &CaptureMetrics{
		client:    client,
		writeAPI:  client.WriteAPI(org, bucket),
		sessionID: sessionID,
		device:    device,
		log:       log.WithField("component", "telemetry"),
	}
}

// Close flushes buffered points and releases the underlying client.
func (m *CaptureMetrics) Close() {
	m.writeAPI.Flush()
	m.client.Close()
}

func (m *CaptureMetrics) tags() map[string]string {
	return map[string]string{
		"session": m.sessionID,
		"device":  m.device,
	}
}

// RecordFragment logs one frontline fragment of the given baseband
// type, with frameType the decoded numeric type code.
func (m *CaptureMetrics) RecordFragment(frameType uint8, payloadLen int) {
	tags := m.tags()
	fields := map[string]interface{}{
		"type":        int(frameType),
		"payload_len": payloadLen,
	}
	p := influxdb2.NewPoint("fragment", tags, fields, time.Now())
	m.writeAPI.WritePoint(p)
}

// RecordTranscript logs the completion of a pairing transcript.
func (m *CaptureMetrics) RecordTranscript(pinMaster bool) {
	tags := m.tags()
	fields := map[string]interface{}{
		"pin_master": pinMaster,
	}
	p := influxdb2.NewPoint("pairing_transcript", tags, fields, time.Now())
	m.writeAPI.WritePoint(p)
}

// RecordError logs a fatal decode error so dashboards can alert on
// capture sessions that died mid-run.
func (m *CaptureMetrics) RecordError(ctx context.Context, op string, err error) {
	tags := m.tags()
	tags["op"] = op
	fields := map[string]interface{}{
		"message": err.Error(),
	}
	p := influxdb2.NewPoint("capture_error", tags, fields, time.Now())
	m.writeAPI.WritePoint(p)
}
