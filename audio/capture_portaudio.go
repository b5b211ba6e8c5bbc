package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend PortAudio实现的默认输入设备
type PortAudioBackend struct {
	logger *slog.Logger
}

func NewPortAudioBackend(logger *slog.Logger) *PortAudioBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioBackend{logger: logger}
}

func (b *PortAudioBackend) Name() string { return "portaudio" }

func (b *PortAudioBackend) Open(format Format) (Device, error) {
	if err := validateFormat(format); err != nil {
		return nil, err
	}

	// 初始化PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	framesPerBuffer := format.PeriodFrames
	if framesPerBuffer <= 0 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	d := &portAudioDevice{logger: b.logger}
	stream, err := portaudio.OpenDefaultStream(
		format.Channels,            // 输入通道数
		0,                          // 输出通道数(0表示不播放)
		float64(format.SampleRate), // 采样率
		framesPerBuffer,
		d.onData,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	d.stream = stream

	b.logger.Info("Audio device opened",
		"backend", b.Name(),
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"frames_per_buffer", framesPerBuffer)
	return d, nil
}

type portAudioDevice struct {
	mu        sync.Mutex
	stream    *portaudio.Stream
	handler   atomic.Pointer[DataHandler]
	recording atomic.Bool
	scratch   []byte
	logger    *slog.Logger
}

// onData 运行在 PortAudio 的回调线程上
func (d *portAudioDevice) onData(in []int16) {
	h := d.handler.Load()
	if h == nil {
		return
	}
	d.scratch = int16ToBytes(d.scratch, in)
	(*h)(d.scratch)
}

func (d *portAudioDevice) Start(handler DataHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return ErrDeviceClosed
	}
	if d.recording.Load() {
		return ErrDeviceStarted
	}
	d.handler.Store(&handler)
	if err := d.stream.Start(); err != nil {
		d.handler.Store(nil)
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	d.recording.Store(true)
	return nil
}

func (d *portAudioDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return ErrDeviceClosed
	}
	d.recording.Store(false)
	err := d.stream.Stop()
	d.handler.Store(nil)
	if err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (d *portAudioDevice) Recording() bool {
	return d.recording.Load()
}

func (d *portAudioDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil
	}
	d.handler.Store(nil)
	if d.recording.Swap(false) {
		if err := d.stream.Stop(); err != nil {
			d.logger.Error("failed to stop audio stream", "error", err)
		}
	}
	err := d.stream.Close()
	d.stream = nil

	// 终止PortAudio
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return nil
}

// int16ToBytes 将样本按小端序写入 dst，容量足够时复用 dst
func int16ToBytes(dst []byte, samples []int16) []byte {
	n := len(samples) * 2
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst
}
