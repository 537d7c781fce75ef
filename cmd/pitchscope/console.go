package main

import (
	"github.com/kilomelo/audio-analysis/logging"
	"github.com/kilomelo/audio-analysis/pipeline"
)

// consoleSink logs the lowest detected note whenever it changes.
type consoleSink struct {
	logger  logging.Logger
	lastSeq uint64
	note    string
}

func newConsoleSink(logger logging.Logger) *consoleSink {
	return &consoleSink{logger: logger}
}

func (c *consoleSink) Sink(f *pipeline.RenderFrame) {
	if f.Sequence == c.lastSeq {
		return
	}
	c.lastSeq = f.Sequence

	note := ""
	if len(f.Peaks) > 0 {
		note = f.Peaks[0].Note
	}
	if note == c.note {
		return
	}
	c.note = note
	if note == "" {
		c.logger.Debug("silence", logging.Fields{"time": f.Time})
		return
	}

	peak := f.Peaks[0]
	c.logger.Info("note", logging.Fields{
		"time":      f.Time,
		"note":      note,
		"frequency": peak.DisplayFrequency,
		"cents":     peak.Cents,
		"volume_db": f.VolumeDB,
	})
}
