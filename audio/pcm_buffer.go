package audio

import (
	"bytes"
	"sync"
)

// PCMBuffer 是采集回调写入、编码循环读取的线程安全缓冲区。
// 与 bytes.Buffer 一样，数据读空时返回 io.EOF，之后写入的数据仍可继续读取。
type PCMBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewPCMBuffer() *PCMBuffer {
	return &PCMBuffer{}
}

func (b *PCMBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *PCMBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

// Reset 丢弃所有缓存数据
func (b *PCMBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
