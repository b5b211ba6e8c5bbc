// audio/interface.go
package audio

// BitsPerSample 采集与编码固定使用 16 位有符号 PCM
const BitsPerSample = 16

// Format 描述采集设备的 PCM 格式
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	// PeriodFrames 每次回调的帧数，0 表示由后端决定
	PeriodFrames int
}

// DataHandler 在采集线程上被调用，pcm 只在回调期间有效
type DataHandler func(pcm []byte)

// Backend 打开默认输入设备
type Backend interface {
	Open(format Format) (Device, error)
	Name() string
}

// Device 定义音频采集设备接口
type Device interface {
	// Start 注册回调并启动设备，启动失败同步返回
	Start(handler DataHandler) error
	Stop() error
	Recording() bool
	Close() error
}

// Encoder 定义本地压缩编码器桥接接口。
// 每次成功的 Init 必须对应一次 Release。
type Encoder interface {
	Init(sampleRate, channels, bitRate int) error
	Release() error
	InputBufferSize() (int, error)
	MaxOutputBufferSize() (int, error)
	// Encode 返回写入 out 的字节数，0 表示数据已在编码器内部缓存
	Encode(in, out []byte) (int, error)
}
