package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kilomelo/audio-analysis/logging"
)

// ErrNoAudio is returned when a file holds no samples.
var ErrNoAudio = errors.New("no audio samples")

// silenceLevel fills the block reported before playback reaches the first
// chunk, keeping the spectrum away from the dB floor.
const silenceLevel = 1e-6

// FileSource plays a decoded file back in real time, one chunk per
// chunk-duration, optionally looping.
type FileSource struct {
	mu      sync.Mutex
	blocks  [][]float64
	current int
	loop    bool
	ready   bool
	params  Params

	broadcaster *Broadcaster
	cancel      context.CancelFunc
	done        chan struct{}
	logger      logging.Logger
}

// NewFileSource creates an empty file source; Load fills it.
func NewFileSource(b *Broadcaster) *FileSource {
	return &FileSource{
		broadcaster: b,
		loop:        true,
		params:      b.Params(),
		logger: logging.WithFields(logging.Fields{
			"component": "file_source",
		}),
	}
}

// LoadFile opens and loads a WAV file.
func (f *FileSource) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	if err := f.Load(file); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes a WAV stream to mono, switches the broadcaster to the file's
// sample rate and splits the samples into zero-padded chunks. Playback is
// stopped and rewound.
func (f *FileSource) Load(r io.ReadSeeker) error {
	logger := f.logger.WithFields(logging.Fields{
		"function": "Load",
	})

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return errors.New("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("could not read PCM buffer: %w", err)
	}
	mono, err := PCMToMono(buf)
	if err != nil {
		return err
	}

	f.Stop()

	sampleRate := buf.Format.SampleRate
	if sampleRate != f.broadcaster.Params().SampleRate {
		if err := f.broadcaster.SetSampleRate(sampleRate); err != nil {
			return err
		}
	}
	params := f.broadcaster.Params()

	blocks := SplitBlocks(mono, params.ChunkSize)

	f.mu.Lock()
	f.blocks = blocks
	f.current = 0
	f.ready = false
	f.params = params
	f.mu.Unlock()

	logger.Info("audio file loaded", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    buf.Format.NumChannels,
		"bit_depth":   buf.SourceBitDepth,
		"duration":    float64(len(mono)) / float64(sampleRate),
		"blocks":      len(blocks),
	})
	return nil
}

// PCMToMono converts integer PCM to floats in [-1, 1) and averages the
// channels.
func PCMToMono(buf *audio.IntBuffer) ([]float64, error) {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, ErrNoAudio
	}
	channels := max(buf.Format.NumChannels, 1)
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, ErrNoAudio
	}
	out := make([]float64, frames)
	for i := range out {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out, nil
}

// SplitBlocks cuts samples into chunkSize blocks, zero-padding the last.
func SplitBlocks(samples []float64, chunkSize int) [][]float64 {
	if chunkSize <= 0 {
		return nil
	}
	blocks := make([][]float64, 0, (len(samples)+chunkSize-1)/chunkSize)
	for i := 0; i < len(samples); i += chunkSize {
		block := make([]float64, chunkSize)
		copy(block, samples[i:min(i+chunkSize, len(samples))])
		blocks = append(blocks, block)
	}
	return blocks
}

// Start launches the playback goroutine, which advances one chunk per
// chunk duration until ctx is cancelled, Stop is called or, without
// looping, the file ends.
func (f *FileSource) Start(ctx context.Context) error {
	f.mu.Lock()
	if len(f.blocks) == 0 {
		f.mu.Unlock()
		return ErrNoAudio
	}
	if f.cancel != nil {
		f.mu.Unlock()
		return errors.New("playback already running")
	}
	interval := time.Duration(float64(f.params.ChunkSize) / float64(f.params.SampleRate) * float64(time.Second))
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	go f.play(ctx, interval, done)
	return nil
}

func (f *FileSource) play(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.Advance() {
				f.logger.Info("playback finished")
				return
			}
		}
	}
}

// Advance plays one chunk. At the end of the file it rewinds when looping
// and reports false otherwise.
func (f *FileSource) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current < len(f.blocks) {
		f.current++
		f.ready = true
		return true
	}
	if f.loop && len(f.blocks) > 0 {
		f.current = 0
		f.logger.Debug("looping playback")
		return true
	}
	return false
}

// Stop halts playback and waits for the goroutine to exit. The position
// is kept.
func (f *FileSource) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// TakeLatest returns the chunk being played when playback advanced since
// the previous call.
func (f *FileSource) TakeLatest() ([]float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ready {
		return nil, false
	}
	f.ready = false
	return f.latestLocked(), true
}

// Latest returns the chunk being played, or a near-silent block before
// playback starts.
func (f *FileSource) Latest() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestLocked()
}

func (f *FileSource) latestLocked() []float64 {
	if f.current == 0 || len(f.blocks) == 0 {
		block := make([]float64, f.params.ChunkSize)
		for i := range block {
			block[i] = silenceLevel
		}
		return block
	}
	return f.blocks[f.current-1]
}

// CurrentTime is the playback position in seconds.
func (f *FileSource) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return max(float64(f.current*f.params.ChunkSize)/float64(f.params.SampleRate), minTime)
}

// Params implements Source.
func (f *FileSource) Params() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// TotalFrames returns the number of chunks in the file.
func (f *FileSource) TotalFrames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocks)
}

// CurrentFrame returns the number of chunks played since the last rewind.
func (f *FileSource) CurrentFrame() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// TotalSeconds returns the padded duration of the file.
func (f *FileSource) TotalSeconds() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(len(f.blocks)*f.params.ChunkSize) / float64(f.params.SampleRate)
}

// Seek moves playback to chunk position, clamped to the file.
func (f *FileSource) Seek(position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = max(0, min(position, len(f.blocks)-1))
}

// SetLoop enables or disables looping.
func (f *FileSource) SetLoop(loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = loop
}

// Close stops playback and releases the decoded audio.
func (f *FileSource) Close() error {
	f.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = nil
	f.current = 0
	f.ready = false
	return nil
}
