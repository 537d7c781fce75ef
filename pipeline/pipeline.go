// Package pipeline drives the analysis layers over the blocks of a source
// and publishes render snapshots.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilomelo/audio-analysis/algorithms/pitch"
	"github.com/kilomelo/audio-analysis/config"
	"github.com/kilomelo/audio-analysis/logging"
	"github.com/kilomelo/audio-analysis/source"
)

// Pipeline owns the layers. All layer state is touched only by the compute
// goroutine; settings changed from other goroutines are queued and applied
// before the next block.
type Pipeline struct {
	config    config.Config
	src       source.Source
	converter *pitch.Converter

	spectrum *SpectrumLayer
	peaks    *PeakLayer
	melody   *MelodyLayer
	layers   []Layer

	renders  *RenderBuffer
	sequence uint64

	mu           sync.Mutex
	pendingParam *source.Params
	pendingRange *[2]float64
	pendingReset bool
	pendingView  MelodyView

	logger logging.Logger
}

// New builds and initialises the layers. Register the pipeline with the
// source's Broadcaster so it learns the audio parameters.
func New(cfg config.Config, src source.Source) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// peak levels are read from the curve that is displayed
	cfg.Peaks.SmoothedCurve = cfg.Spectrum.SmoothedCurve

	conv := pitch.NewConverter(cfg.ReferencePitch)
	p := &Pipeline{
		config:    cfg,
		src:       src,
		converter: conv,
		spectrum:  NewSpectrumLayer(cfg.Spectrum),
		peaks:     NewPeakLayer(cfg.Peaks, conv),
		melody:    NewMelodyLayer(cfg.Melody, conv),
		renders:   NewRenderBuffer(DefaultRenderCapacity),
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline",
		}),
	}
	p.layers = []Layer{p.spectrum, p.peaks, p.melody}

	for _, l := range p.layers {
		if err := l.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize %s layer: %w", l.Name(), err)
		}
	}
	return p, nil
}

// OnParamsChanged queues new audio parameters for the next block.
func (p *Pipeline) OnParamsChanged(sampleRate, chunkSize, nfft int) {
	p.mu.Lock()
	p.pendingParam = &source.Params{SampleRate: sampleRate, ChunkSize: chunkSize, FFTSize: nfft}
	p.mu.Unlock()
}

// SetReferencePitch retunes note naming.
func (p *Pipeline) SetReferencePitch(ref float64) error {
	if !(ref > 0) {
		return fmt.Errorf("reference pitch must be positive, got %v", ref)
	}
	p.converter.SetReference(ref)
	return nil
}

// ReferencePitch returns the current A4 frequency.
func (p *Pipeline) ReferencePitch() float64 { return p.converter.Reference() }

// SetFreqRange queues a new analysed band for the next block.
func (p *Pipeline) SetFreqRange(lo, hi float64) error {
	if !(lo > 0) || !(hi > lo) {
		return fmt.Errorf("frequency range must satisfy 0 < low < high, got [%v, %v]", lo, hi)
	}
	p.mu.Lock()
	p.pendingRange = &[2]float64{lo, hi}
	p.mu.Unlock()
	return nil
}

// Reset queues clearing the peak cache and melody history.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.pendingReset = true
	p.mu.Unlock()
}

// SetMelodyView queues melody display changes for the next block. Views
// queued before that block are merged.
func (p *Pipeline) SetMelodyView(v MelodyView) error {
	if v.IsZero() {
		return errors.New("melody view has no options set")
	}
	p.mu.Lock()
	if v.ShowReferenceLines != nil {
		p.pendingView.ShowReferenceLines = v.ShowReferenceLines
	}
	if v.DynamicFreqRange != nil {
		p.pendingView.DynamicFreqRange = v.DynamicFreqRange
	}
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) applyPending() {
	p.mu.Lock()
	params, freqRange, reset, view := p.pendingParam, p.pendingRange, p.pendingReset, p.pendingView
	p.pendingParam, p.pendingRange, p.pendingReset, p.pendingView = nil, nil, false, MelodyView{}
	p.mu.Unlock()

	if params != nil {
		for _, l := range p.layers {
			l.OnParamsChanged(params.SampleRate, params.ChunkSize, params.FFTSize)
		}
	}
	if freqRange != nil {
		if err := p.spectrum.SetFreqRange(freqRange[0], freqRange[1]); err != nil {
			p.logger.Error(err, "failed to change frequency range", logging.Fields{
				"freq_range": *freqRange,
			})
		}
	}
	if reset {
		for _, l := range p.layers {
			l.Clean()
		}
	}
	if !view.IsZero() {
		p.melody.ApplyView(view)
	}
}

// ComputeFrame runs every layer over one block taken at stream time now
// and publishes the snapshot. When a layer fails, the later layers skip
// this block but keep their state; the snapshot is still published and
// the error returned.
func (p *Pipeline) ComputeFrame(now float64, block []float64) (*RenderFrame, error) {
	p.applyPending()

	frame := &Frame{Time: now}
	var procErr error
	for _, l := range p.layers {
		if err := l.Process(block, frame); err != nil {
			procErr = fmt.Errorf("%s layer: %w", l.Name(), err)
			break
		}
	}

	p.sequence++
	out := &RenderFrame{Sequence: p.sequence, Time: now}
	for _, l := range p.layers {
		l.Draw(frame, out)
	}
	p.renders.Push(out)

	return out, procErr
}

// Run polls the source every compute interval and processes the newest
// block whenever one arrived. Per-block failures are logged. It returns
// when ctx is cancelled, after the block in flight completes.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.ComputeInterval())
	defer ticker.Stop()

	p.logger.Info("compute loop started", logging.Fields{
		"interval": p.config.ComputeInterval().String(),
	})

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("compute loop stopped")
			return ctx.Err()
		case <-ticker.C:
			block, ok := p.src.TakeLatest()
			if !ok {
				continue
			}
			if _, err := p.ComputeFrame(p.src.CurrentTime(), block); err != nil {
				p.logger.Error(err, "frame processing failed")
			}
		}
	}
}

// RenderLoop hands the newest snapshot to sink every interval, repeating
// the previous one when compute has not produced a new frame. It returns
// when ctx is cancelled.
func (p *Pipeline) RenderLoop(ctx context.Context, interval time.Duration, sink func(*RenderFrame)) error {
	if interval <= 0 {
		return errors.New("render interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if f, _ := p.renders.Next(); f != nil {
				sink(f)
			}
		}
	}
}

// Renders returns the buffer snapshots are published to.
func (p *Pipeline) Renders() *RenderBuffer { return p.renders }

// Melody returns the melody layer.
func (p *Pipeline) Melody() *MelodyLayer { return p.melody }
