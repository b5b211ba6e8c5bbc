package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoBackend 基于 miniaudio 的默认输入设备
type MalgoBackend struct {
	logger *slog.Logger
}

func NewMalgoBackend(logger *slog.Logger) *MalgoBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoBackend{logger: logger}
}

func (b *MalgoBackend) Name() string { return "malgo" }

func (b *MalgoBackend) Open(format Format) (Device, error) {
	if err := validateFormat(format); err != nil {
		return nil, err
	}

	// 初始化malgo上下文
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		b.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	d := &malgoDevice{ctx: ctx, logger: b.logger}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	if format.PeriodFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(format.PeriodFrames)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onData,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize audio device: %w", err)
	}
	d.device = device

	b.logger.Info("Audio device opened",
		"backend", b.Name(),
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"period_frames", format.PeriodFrames)
	return d, nil
}

type malgoDevice struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	handler atomic.Pointer[DataHandler]
	logger  *slog.Logger
}

func (d *malgoDevice) onData(_, input []byte, _ uint32) {
	if h := d.handler.Load(); h != nil {
		(*h)(input)
	}
}

func (d *malgoDevice) Start(handler DataHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return ErrDeviceClosed
	}
	if d.device.IsStarted() {
		return ErrDeviceStarted
	}
	d.handler.Store(&handler)
	if err := d.device.Start(); err != nil {
		d.handler.Store(nil)
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	return nil
}

func (d *malgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return ErrDeviceClosed
	}
	err := d.device.Stop()
	d.handler.Store(nil)
	if err != nil {
		return fmt.Errorf("failed to stop audio device: %w", err)
	}
	return nil
}

func (d *malgoDevice) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device != nil && d.device.IsStarted()
}

func (d *malgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}
	d.handler.Store(nil)
	d.device.Uninit()
	d.device = nil

	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	if err != nil {
		return fmt.Errorf("failed to release audio context: %w", err)
	}
	return nil
}

func validateFormat(format Format) error {
	if format.BitsPerSample != BitsPerSample {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, format.BitsPerSample)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrUnsupportedFormat, format.SampleRate, format.Channels)
	}
	return nil
}
