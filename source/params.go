package source

import (
	"fmt"
	"math"
	"sync"

	"github.com/kilomelo/audio-analysis/logging"
)

// Params are the audio parameters every analysis stage depends on.
type Params struct {
	SampleRate int `json:"sample_rate"`
	ChunkSize  int `json:"chunk_size"`
	FFTSize    int `json:"n_fft"`
}

// Validate reports non-positive parameters.
func (p Params) Validate() error {
	if p.SampleRate <= 0 || p.ChunkSize <= 0 || p.FFTSize <= 0 {
		return fmt.Errorf("sample rate, chunk size and FFT size must be positive, got %d/%d/%d",
			p.SampleRate, p.ChunkSize, p.FFTSize)
	}
	return nil
}

// ParamsListener is notified whenever the audio parameters change.
type ParamsListener interface {
	OnParamsChanged(sampleRate, chunkSize, nfft int)
}

// Broadcaster owns the current audio parameters and fans changes out to its
// listeners synchronously, in registration order.
type Broadcaster struct {
	mu        sync.Mutex
	base      Params
	current   Params
	listeners []ParamsListener
	logger    logging.Logger
}

// NewBroadcaster starts at the base parameters. Chunk and FFT sizes for
// other sample rates are scaled from them.
func NewBroadcaster(base Params) (*Broadcaster, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return &Broadcaster{
		base:    base,
		current: base,
		logger: logging.WithFields(logging.Fields{
			"component": "params_broadcaster",
		}),
	}, nil
}

// AddListener registers l and immediately delivers the current parameters
// to it. Registering the same listener twice has no effect.
func (b *Broadcaster) AddListener(l ParamsListener) {
	b.mu.Lock()
	for _, existing := range b.listeners {
		if existing == l {
			b.mu.Unlock()
			return
		}
	}
	b.listeners = append(b.listeners, l)
	p := b.current
	b.mu.Unlock()

	l.OnParamsChanged(p.SampleRate, p.ChunkSize, p.FFTSize)
}

// Params returns the current parameters.
func (b *Broadcaster) Params() Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Multiplier is the factor chunk and FFT sizes are scaled by at sampleRate:
// the base-rate ratio rounded to an integer, at least 1.
func (b *Broadcaster) Multiplier(sampleRate int) int {
	m := int(math.Round(float64(sampleRate) / float64(b.base.SampleRate)))
	return max(m, 1)
}

// SetSampleRate switches to a new sample rate, rescales the chunk and FFT
// sizes and notifies every listener.
func (b *Broadcaster) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	m := b.Multiplier(sampleRate)

	b.mu.Lock()
	b.current = Params{
		SampleRate: sampleRate,
		ChunkSize:  b.base.ChunkSize * m,
		FFTSize:    b.base.FFTSize * m,
	}
	p := b.current
	listeners := make([]ParamsListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	b.logger.Info("audio parameters changed", logging.Fields{
		"sample_rate": p.SampleRate,
		"chunk_size":  p.ChunkSize,
		"n_fft":       p.FFTSize,
		"listeners":   len(listeners),
	})

	for _, l := range listeners {
		l.OnParamsChanged(p.SampleRate, p.ChunkSize, p.FFTSize)
	}
	return nil
}
