package audio

import (
	"io"
	"sync"
	"time"

	"github.com/lisuiheng/voicecap/utils"
)

// DefaultPeakInterval 峰值统计窗口
const DefaultPeakInterval = 250 * time.Millisecond

const maxSampleValue = 32768.0

// PeakMeter 透传 S16LE PCM 流，并在每个统计窗口结束时发布该窗口内的最大归一化幅值。
type PeakMeter struct {
	mu       sync.Mutex
	src      io.Reader
	window   int // 每个窗口的样本数（含所有声道）
	count    int
	peak     int32
	carry    byte
	hasCarry bool
	closed   bool

	peaks *utils.Broadcaster[float32]
}

// NewPeakMeter 包装上游 PCM 源
func NewPeakMeter(src io.Reader, sampleRate, channels int, interval time.Duration) *PeakMeter {
	if interval <= 0 {
		interval = DefaultPeakInterval
	}
	window := int(int64(sampleRate) * int64(channels) * int64(interval) / int64(time.Second))
	if window < 1 {
		window = 1
	}
	return &PeakMeter{
		src:    src,
		window: window,
		peaks:  utils.NewBroadcaster[float32](),
	}
}

// OnPeak 订阅峰值事件，回调运行在调用 Read 的线程上
func (m *PeakMeter) OnPeak(fn func(float32)) (unsubscribe func()) {
	return m.peaks.Subscribe(fn)
}

// Read 从上游读取数据并原样返回
func (m *PeakMeter) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrSourceClosed
	}
	n, err := m.src.Read(p)
	var ready []float32
	if n > 0 {
		ready = m.analyze(p[:n])
	}
	m.mu.Unlock()

	for _, v := range ready {
		m.peaks.Emit(v)
	}
	return n, err
}

// analyze 更新窗口累加器，返回本次完成的窗口峰值
func (m *PeakMeter) analyze(b []byte) []float32 {
	var ready []float32
	sample := func(s int16) {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > m.peak {
			m.peak = v
		}
		m.count++
		if m.count >= m.window {
			ready = append(ready, normalize(m.peak))
			m.count = 0
			m.peak = 0
		}
	}

	if m.hasCarry {
		sample(int16(uint16(m.carry) | uint16(b[0])<<8))
		b = b[1:]
		m.hasCarry = false
	}
	for len(b) >= 2 {
		sample(int16(uint16(b[0]) | uint16(b[1])<<8))
		b = b[2:]
	}
	if len(b) == 1 {
		m.carry = b[0]
		m.hasCarry = true
	}
	return ready
}

func normalize(peak int32) float32 {
	v := float32(float64(peak) / maxSampleValue)
	if v > 1 {
		return 1
	}
	return v
}

// Close 释放上游数据源，之后的 Read 返回 ErrSourceClosed
func (m *PeakMeter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.count = 0
	m.peak = 0
	m.hasCarry = false

	switch src := m.src.(type) {
	case interface{ Reset() }:
		src.Reset()
	case io.Closer:
		return src.Close()
	}
	return nil
}
