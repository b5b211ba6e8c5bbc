// pkg/interfaces/sink.go
package interfaces

import (
	"errors"
	"io"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrSinkClosed       = errors.New("sink closed")
	ErrUnsupportedSink  = errors.New("unsupported sink")
)

// Sink 接收编码后的音频块，每次 Write 对应一个完整的编码包
type Sink interface {
	io.Writer
	Close() error
	Kind() string
}
