package audio

import "errors"

var (
	ErrEncoderNotInitialized     = errors.New("encoder not initialized")
	ErrEncoderAlreadyInitialized = errors.New("encoder already initialized")
	ErrEncoderBusy               = errors.New("encoder in use by another session")
	ErrUnsupportedFormat         = errors.New("unsupported audio format")
	ErrInputTooLarge             = errors.New("input exceeds encoder input buffer size")
	ErrOutputTooSmall            = errors.New("output buffer smaller than encoder maximum")
	ErrSourceClosed              = errors.New("audio source closed")
	ErrDeviceStarted             = errors.New("device already started")
	ErrDeviceClosed              = errors.New("device closed")
)
