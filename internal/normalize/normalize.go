package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"smartdate"
	"smartdate/internal/recommend"
)

// ErrMalformedPayload signals a payload that cannot be parsed as structured
// data at all. Such messages are dropped; delivery is at-most-once.
var ErrMalformedPayload = errors.New("malformed payload")

// rawPayload mirrors the inbound wire contract. Unknown extra fields are not
// listed here; they survive inside Detection.Raw.
type rawPayload struct {
	Label       *string  `json:"label"`
	Confidence  *float64 `json:"confidence"`
	Timestamp   *float64 `json:"timestamp"`
	Temperature *float64 `json:"temp"`
	Humidity    *float64 `json:"humidity"`
	Image       string   `json:"image"`
}

// Engine maps raw inbound payloads to canonical detections. now is injectable
// for tests; the zero Engine is not usable, construct via New.
type Engine struct {
	now func() time.Time
}

func New() *Engine {
	return &Engine{now: time.Now}
}

// NewWithClock returns an engine with a fixed clock source.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Normalize parses and canonicalizes one inbound payload. On success the
// returned detection always carries a non-empty recommendation.
func (e *Engine) Normalize(payload []byte) (smartdate.Detection, error) {
	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return smartdate.Detection{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	label := smartdate.LabelNone
	if raw.Label != nil && *raw.Label != "" {
		label = *raw.Label
	}

	confidence := 0
	if raw.Confidence != nil {
		confidence = normalizeConfidence(*raw.Confidence)
	}

	ts := e.now().Unix()
	if raw.Timestamp != nil {
		ts = int64(*raw.Timestamp)
	}

	return smartdate.Detection{
		Label:          label,
		Confidence:     confidence,
		Timestamp:      ts,
		Temperature:    raw.Temperature,
		Humidity:       raw.Humidity,
		Image:          raw.Image,
		Recommendation: recommend.Advice(label, confidence),
		Raw:            json.RawMessage(payload),
	}, nil
}

// normalizeConfidence detects the scale of the raw value: fractions in [0,1]
// are percentages divided by 100, anything else is already a percentage.
// The result is rounded to nearest and clamped to [0,100].
func normalizeConfidence(v float64) int {
	if v >= 0 && v <= 1 {
		v *= 100
	}
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
