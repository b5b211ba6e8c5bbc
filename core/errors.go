package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized    = errors.New("recorder not initialized")
	ErrAlreadyCapturing  = errors.New("recorder already capturing")
	ErrCapturing         = errors.New("operation not allowed while capturing")
	ErrDeviceOpen        = errors.New("failed to open capture device")
	ErrDeviceStart       = errors.New("failed to start capture device")
	ErrEncoderInit       = errors.New("failed to initialize encoder")
	ErrInvalidBufferSize = errors.New("encoder reported invalid buffer size")
	ErrNilSink           = errors.New("sink cannot be nil")
)

// CaptureError 采集线程上单个数据块处理失败
type CaptureError struct {
	Op  string // read/encode/sink
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
