// protocols/ogg/writer.go

// Package ogg 将 OPUS 包封装为 Ogg 文件
package ogg

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lisuiheng/voicecap/pkg/interfaces"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Opus 的 granule position 固定按 48kHz 计数
const opusClockRate = 48000

const opusPayloadType = 111

var _ interfaces.Sink = (*Writer)(nil)

// Writer 每个 OPUS 包写成一个 Ogg 页
type Writer struct {
	mu        sync.Mutex
	ogg       *oggwriter.OggWriter
	out       io.Writer
	increment uint32
	timestamp uint32
	sequence  uint16
	closed    bool
}

// New 立即写入 OpusHead 与 OpusTags 页，frameDuration 为单个包的音频时长
func New(out io.Writer, sampleRate, channels int, frameDuration time.Duration) (*Writer, error) {
	if frameDuration <= 0 {
		return nil, fmt.Errorf("invalid frame duration %s", frameDuration)
	}
	// out 只由 Writer.Close 关闭
	ow, err := oggwriter.NewWith(struct{ io.Writer }{out}, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}
	return &Writer{
		ogg:       ow,
		out:       out,
		increment: uint32(int64(opusClockRate) * int64(frameDuration) / int64(time.Second)),
	}, nil
}

// Write 追加一个 OPUS 包
func (w *Writer) Write(packet []byte) (int, error) {
	if len(packet) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, interfaces.ErrSinkClosed
	}

	payload := make([]byte, len(packet))
	copy(payload, packet)
	err := w.ogg.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: w.sequence,
			Timestamp:      w.timestamp,
		},
		Payload: payload,
	})
	if err != nil {
		return 0, fmt.Errorf("write ogg page: %w", err)
	}
	w.sequence++
	w.timestamp += w.increment
	return len(packet), nil
}

func (w *Writer) Kind() string { return "ogg" }

// Close 结束 Ogg 流，out 实现 io.Closer 时一并关闭
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.ogg.Close()
	if c, ok := w.out.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
