package core

import (
	"time"

	"github.com/lisuiheng/voicecap/audio"
)

const (
	DefaultSampleRate = 16000
	DefaultBitRate    = 64000
	DefaultChannels   = 1
)

// CaptureConfig 录音参数，构造 Recorder 后不再改变
type CaptureConfig struct {
	SampleRate    int           `mapstructure:"sample_rate"`
	BitRate       int           `mapstructure:"bit_rate"`
	Channels      int           `mapstructure:"channels"`
	BitsPerSample int           `mapstructure:"-"`
	PeriodFrames  int           `mapstructure:"period_frames"`
	PeakInterval  time.Duration `mapstructure:"peak_interval"`
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:    DefaultSampleRate,
		BitRate:       DefaultBitRate,
		Channels:      DefaultChannels,
		BitsPerSample: audio.BitsPerSample,
		PeakInterval:  audio.DefaultPeakInterval,
	}
}

// withDefaults 为零值字段填充默认值，位深固定为 16
func (c CaptureConfig) withDefaults() CaptureConfig {
	d := DefaultCaptureConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.BitRate <= 0 {
		c.BitRate = d.BitRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.PeakInterval <= 0 {
		c.PeakInterval = d.PeakInterval
	}
	c.BitsPerSample = audio.BitsPerSample
	return c
}

func (c CaptureConfig) format() audio.Format {
	return audio.Format{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitsPerSample: c.BitsPerSample,
		PeriodFrames:  c.PeriodFrames,
	}
}
