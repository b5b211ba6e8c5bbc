package core

import (
	"errors"
	"io"

	"github.com/lisuiheng/voicecap/audio"
)

// pipeline 一次采集期间的缓冲区与回调，只在采集线程上使用
type pipeline struct {
	source  *audio.PCMBuffer
	meter   *audio.PeakMeter
	encoder audio.Encoder
	input   []byte
	output  []byte
	sink    func([]byte) error
	report  func(error)
}

// deliver 作为设备回调：缓存PCM，然后读空数据源并逐块编码
func (p *pipeline) deliver(pcm []byte) {
	if _, err := p.source.Write(pcm); err != nil {
		p.report(&CaptureError{Op: "read", Err: err})
		return
	}

	for {
		n, err := p.meter.Read(p.input)
		if n > 0 {
			if encErr := p.encode(n); encErr != nil {
				p.report(encErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, audio.ErrSourceClosed) {
				p.report(&CaptureError{Op: "read", Err: err})
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

func (p *pipeline) encode(n int) error {
	size, err := p.encoder.Encode(p.input[:n], p.output)
	if err != nil {
		return &CaptureError{Op: "encode", Err: err}
	}
	if size <= 0 {
		return nil
	}

	// 输出缓冲区会被复用，交给 sink 的是副本
	chunk := make([]byte, size)
	copy(chunk, p.output[:size])
	if err := p.sink(chunk); err != nil {
		return &CaptureError{Op: "sink", Err: err}
	}
	return nil
}
