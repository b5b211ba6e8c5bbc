package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hraban/opus"
	"golang.org/x/sync/semaphore"
)

const (
	// OpusFrameDuration 每个编码帧的时长
	OpusFrameDuration = 20 * time.Millisecond
	// opusMaxPacketSize OPUS最大包大小
	opusMaxPacketSize = 4000
)

// 本地编码器按进程内单实例处理
var encoderSlots = semaphore.NewWeighted(1)

var _ Encoder = (*OpusEncoder)(nil)

// OpusEncoder OPUS音频编码器
type OpusEncoder struct {
	mu         sync.Mutex
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	inputSize  int
	pending    []byte
	pcm        []int16
	logger     *slog.Logger
}

// NewOpusEncoder 创建未初始化的OPUS编码器，需调用 Init 分配本地资源
func NewOpusEncoder(logger *slog.Logger) *OpusEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpusEncoder{logger: logger}
}

func (e *OpusEncoder) Init(sampleRate, channels, bitRate int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.encoder != nil {
		return ErrEncoderAlreadyInitialized
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if !encoderSlots.TryAcquire(1) {
		return ErrEncoderBusy
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		encoderSlots.Release(1)
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := enc.SetBitrate(bitRate); err != nil {
		encoderSlots.Release(1)
		return fmt.Errorf("%w: bitrate %d: %v", ErrUnsupportedFormat, bitRate, err)
	}

	frameSamples := sampleRate * int(OpusFrameDuration/time.Millisecond) / 1000
	e.encoder = enc
	e.sampleRate = sampleRate
	e.channels = channels
	e.inputSize = frameSamples * channels * BitsPerSample / 8
	e.pending = make([]byte, 0, e.inputSize*2)
	e.pcm = make([]int16, frameSamples*channels)

	e.logger.Debug("Opus encoder initialized",
		"sample_rate", sampleRate,
		"channels", channels,
		"bit_rate", bitRate,
		"input_size", e.inputSize)
	return nil
}

// Release 释放编码器资源
func (e *OpusEncoder) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.encoder == nil {
		return ErrEncoderNotInitialized
	}
	e.encoder = nil
	e.pending = nil
	e.pcm = nil
	e.inputSize = 0
	encoderSlots.Release(1)
	return nil
}

func (e *OpusEncoder) InputBufferSize() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoder == nil {
		return 0, ErrEncoderNotInitialized
	}
	return e.inputSize, nil
}

func (e *OpusEncoder) MaxOutputBufferSize() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoder == nil {
		return 0, ErrEncoderNotInitialized
	}
	return opusMaxPacketSize, nil
}

// Encode 编码PCM音频数据，不足一帧时缓存在内部并返回 0
func (e *OpusEncoder) Encode(in, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.encoder == nil {
		return 0, ErrEncoderNotInitialized
	}
	if len(in) > e.inputSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrInputTooLarge, len(in), e.inputSize)
	}
	if len(out) < opusMaxPacketSize {
		return 0, fmt.Errorf("%w: %d < %d", ErrOutputTooSmall, len(out), opusMaxPacketSize)
	}

	e.pending = append(e.pending, in...)
	if len(e.pending) < e.inputSize {
		return 0, nil
	}

	for i := range e.pcm {
		e.pcm[i] = int16(binary.LittleEndian.Uint16(e.pending[i*2:]))
	}
	rest := copy(e.pending, e.pending[e.inputSize:])
	e.pending = e.pending[:rest]

	n, err := e.encoder.Encode(e.pcm, out)
	if err != nil {
		return 0, fmt.Errorf("opus encode failed: %w", err)
	}
	return n, nil
}
