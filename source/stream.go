// Package source produces mono audio blocks for the analysis pipeline,
// either pushed by a live capture callback or played back from a file.
package source

import (
	"fmt"
	"time"

	"github.com/kilomelo/audio-analysis/logging"
)

// Source is what the compute loop polls each tick.
type Source interface {
	// TakeLatest returns the newest block when new data arrived since the
	// previous call.
	TakeLatest() ([]float64, bool)
	// CurrentTime is the stream position in seconds, always positive.
	CurrentTime() float64
	// Params returns the audio parameters blocks are produced with.
	Params() Params
	Close() error
}

// StreamSource receives blocks from a capture callback.
type StreamSource struct {
	ring        *BlockRing
	broadcaster *Broadcaster
	start       time.Time
	now         func() time.Time
	logger      logging.Logger
}

// NewStreamSource creates a source whose clock starts now.
func NewStreamSource(b *Broadcaster) *StreamSource {
	return &StreamSource{
		ring:        NewBlockRing(DefaultRingCapacity),
		broadcaster: b,
		start:       time.Now(),
		now:         time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "stream_source",
		}),
	}
}

// Push takes one capture buffer of interleaved samples, averages the
// channels to mono and stores the block. It never blocks on the consumer.
func (s *StreamSource) Push(interleaved []float32, channels int) error {
	if channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(interleaved)%channels != 0 {
		return fmt.Errorf("buffer of %d samples is not a whole number of %d-channel frames",
			len(interleaved), channels)
	}

	s.ring.Push(MixToMono(interleaved, channels))
	return nil
}

// DeviceChanged reports a new capture sample rate, e.g. after a device
// reconnect.
func (s *StreamSource) DeviceChanged(sampleRate int) error {
	s.logger.Info("capture device changed", logging.Fields{
		"sample_rate": sampleRate,
	})
	s.ring.Clear()
	return s.broadcaster.SetSampleRate(sampleRate)
}

// TakeLatest implements Source.
func (s *StreamSource) TakeLatest() ([]float64, bool) {
	return s.ring.TakeLatest()
}

// CurrentTime is the wall-clock time since the source was created.
func (s *StreamSource) CurrentTime() float64 {
	return max(s.now().Sub(s.start).Seconds(), minTime)
}

// Params implements Source.
func (s *StreamSource) Params() Params {
	return s.broadcaster.Params()
}

// Blocks returns the total number of blocks received.
func (s *StreamSource) Blocks() uint64 {
	return s.ring.Pushed()
}

// Close drops buffered audio.
func (s *StreamSource) Close() error {
	s.ring.Clear()
	return nil
}

// minTime keeps reported times positive; the melody tracker ignores 0.
const minTime = 0.001

// MixToMono averages interleaved channels.
func MixToMono(interleaved []float32, channels int) []float64 {
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	if channels == 1 {
		for i, v := range interleaved {
			out[i] = float64(v)
		}
		return out
	}

	for i := range out {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(interleaved[i*channels+c])
		}
		out[i] = sum / float64(channels)
	}
	return out
}
