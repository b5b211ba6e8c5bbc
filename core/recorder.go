package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lisuiheng/voicecap/audio"
	"github.com/lisuiheng/voicecap/utils"
)

// Recorder 管理采集设备、编码器资源和逐块编码流水线的生命周期。
// Initialize、StartCapture、StopCapture 与 Close 互斥执行；
// 峰值与错误回调运行在采集线程上，不应长时间阻塞，
// 也不能在回调中调用 StopCapture 或 Close：停止设备会等待采集线程返回，导致死锁。
type Recorder struct {
	config  CaptureConfig
	backend audio.Backend
	encoder audio.Encoder
	logger  *slog.Logger

	mu         sync.Mutex
	state      SessionState
	device     audio.Device
	held       bool // encoder 持有本地资源
	inputSize  int
	outputSize int
	pipeline   *pipeline

	peaks  *utils.Broadcaster[float32]
	errors *utils.Broadcaster[error]
}

// Option 配置 Recorder 的依赖
type Option func(*Recorder)

func WithBackend(b audio.Backend) Option {
	return func(r *Recorder) { r.backend = b }
}

func WithEncoder(e audio.Encoder) Option {
	return func(r *Recorder) { r.encoder = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder 创建录音会话，默认使用 malgo 采集和 OPUS 编码
func NewRecorder(cfg CaptureConfig, opts ...Option) *Recorder {
	r := &Recorder{
		config: cfg.withDefaults(),
		state:  StateUninitialized,
		peaks:  utils.NewBroadcaster[float32](),
		errors: utils.NewBroadcaster[error](),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.backend == nil {
		r.backend = audio.NewMalgoBackend(r.logger)
	}
	if r.encoder == nil {
		r.encoder = audio.NewOpusEncoder(r.logger)
	}
	return r
}

// Config 返回构造时确定的参数
func (r *Recorder) Config() CaptureConfig { return r.config }

// State 获取当前会话状态
func (r *Recorder) State() SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnPeakMeter 订阅峰值事件，fn 在采集线程上执行
func (r *Recorder) OnPeakMeter(fn func(float32)) (unsubscribe func()) {
	return r.peaks.Subscribe(fn)
}

// OnError 订阅采集线程上的逐块处理错误
func (r *Recorder) OnError(fn func(error)) (unsubscribe func()) {
	return r.errors.Subscribe(fn)
}

// Initialize 打开默认输入设备并分配编码器，已持有的编码器先释放。
// 任一步骤失败时不保留任何已分配的资源。
func (r *Recorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateCapturing {
		return ErrCapturing
	}
	if err := r.releaseLocked(); err != nil {
		r.logger.Warn("Failed to release previous resources", "error", err)
	}

	device, err := r.backend.Open(r.config.format())
	if err != nil {
		r.logger.Error("Failed to open capture device", "backend", r.backend.Name(), "error", err)
		return fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}

	if err := r.encoder.Init(r.config.SampleRate, r.config.Channels, r.config.BitRate); err != nil {
		r.closeDevice(device)
		r.logger.Error("Failed to initialize encoder", "error", err)
		return fmt.Errorf("%w: %w", ErrEncoderInit, err)
	}
	r.held = true
	r.device = device

	inputSize, outputSize, err := r.bufferSizes()
	if err != nil {
		if relErr := r.releaseLocked(); relErr != nil {
			r.logger.Warn("Failed to release resources", "error", relErr)
		}
		return err
	}
	r.inputSize = inputSize
	r.outputSize = outputSize
	r.state = StateInitialized

	r.logger.Info("Recorder initialized",
		"backend", r.backend.Name(),
		"sample_rate", r.config.SampleRate,
		"channels", r.config.Channels,
		"bit_rate", r.config.BitRate,
		"input_buffer", inputSize,
		"output_buffer", outputSize)
	return nil
}

// StartCapture 开始采集，编码结果写入 w。对 w 的写入互斥执行。
func (r *Recorder) StartCapture(w io.Writer) error {
	if w == nil {
		return ErrNilSink
	}
	var mu sync.Mutex
	return r.StartCaptureFunc(func(data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := w.Write(data)
		return err
	})
}

// StartCaptureFunc 开始采集，每个非空编码块在采集线程上按顺序交给 sink
func (r *Recorder) StartCaptureFunc(sink func([]byte) error) error {
	if sink == nil {
		return ErrNilSink
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state == StateCapturing:
		return ErrAlreadyCapturing
	case !r.state.canStart() || !r.held || r.device == nil:
		return ErrNotInitialized
	}

	inputSize, outputSize, err := r.bufferSizes()
	if err != nil {
		return err
	}
	r.inputSize = inputSize
	r.outputSize = outputSize

	source := audio.NewPCMBuffer()
	meter := audio.NewPeakMeter(source, r.config.SampleRate, r.config.Channels, r.config.PeakInterval)
	p := &pipeline{
		source:  source,
		meter:   meter,
		encoder: r.encoder,
		input:   make([]byte, inputSize),
		output:  make([]byte, outputSize),
		sink:    sink,
		report:  r.reportError,
	}

	unsubscribe := meter.OnPeak(r.peaks.Emit)
	if err := r.device.Start(p.deliver); err != nil {
		unsubscribe()
		_ = meter.Close()
		r.logger.Error("Failed to start capture", "error", err)
		return fmt.Errorf("%w: %w", ErrDeviceStart, err)
	}

	r.pipeline = p
	r.state = StateCapturing
	r.logger.Info("Audio capture started", "input_buffer", inputSize, "output_buffer", outputSize)
	return nil
}

// StopCapture 停止采集，未在采集时不做任何事
func (r *Recorder) StopCapture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if r.state != StateCapturing {
		return
	}
	r.state = StateStopped

	p := r.pipeline
	r.pipeline = nil
	if p != nil {
		if err := p.meter.Close(); err != nil {
			r.logger.Warn("Failed to dispose audio source", "error", err)
		}
	}

	if r.device != nil && r.device.Recording() {
		if err := r.device.Stop(); err != nil {
			r.logger.Error("Failed to stop capture device", "error", err)
			r.reportError(&CaptureError{Op: "stop", Err: err})
		}
	}
	r.logger.Info("Audio capture stopped")
}

// Close 停止采集并释放编码器和设备，可重复调用
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	err := r.releaseLocked()
	r.state = StateUninitialized
	return err
}

// releaseLocked 释放已持有的编码器与设备
func (r *Recorder) releaseLocked() error {
	var errs []error
	if r.held {
		r.held = false
		if err := r.encoder.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release encoder: %w", err))
		}
	}
	if r.device != nil {
		if err := r.device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
		r.device = nil
	}
	r.inputSize = 0
	r.outputSize = 0
	r.state = StateUninitialized
	return errors.Join(errs...)
}

func (r *Recorder) bufferSizes() (int, int, error) {
	inputSize, err := r.encoder.InputBufferSize()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidBufferSize, err)
	}
	outputSize, err := r.encoder.MaxOutputBufferSize()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidBufferSize, err)
	}
	if inputSize <= 0 || outputSize <= 0 {
		return 0, 0, fmt.Errorf("%w: input %d, output %d", ErrInvalidBufferSize, inputSize, outputSize)
	}
	return inputSize, outputSize, nil
}

func (r *Recorder) closeDevice(device audio.Device) {
	if err := device.Close(); err != nil {
		r.logger.Warn("Failed to close capture device", "error", err)
	}
}

func (r *Recorder) reportError(err error) {
	r.logger.Error("Audio chunk processing failed", "error", err)
	r.errors.Emit(err)
}
