package types

import "fmt"

// ErrKind 引擎内部的命名错误类别，状态接口按此上报
type ErrKind string

const (
	ErrQueueFull     ErrKind = "QUEUE_FULL"     // 请求队列满，下单失败
	ErrOrderRejected ErrKind = "ORDER_REJECTED" // 柜台/风控拒单
	ErrRiskBreach    ErrKind = "RISK_BREACH"    // 触发止损或风控上限
	ErrSnapshotIO    ErrKind = "SNAPSHOT_IO"    // 快照文件读写失败
	ErrIPCFatal      ErrKind = "IPC_FATAL"      // 共享内存段不可用，进程必须退出
)

// KindError 携带类别的错误，可用 errors.As 提取
type KindError struct {
	Kind ErrKind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }

// NewKindError 包装 err 并打上类别
func NewKindError(kind ErrKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

// Kindf 按格式构造带类别的错误
func Kindf(kind ErrKind, format string, args ...interface{}) *KindError {
	return &KindError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
