package shm

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"
)

// ScalarCell 共享内存中的单个 float64（t-var）。
// 外部进程写，策略进程每 tick 读一次。按 8 字节对齐读写是原子的，
// 值本身变化缓慢，撕裂读不影响任何不变量。
type ScalarCell struct {
	seg *Segment
	ptr unsafe.Pointer // uint64 位模式
}

// OpenScalarCell 挂载已有 cell。key <= 0 表示不使用，返回 nil。
func OpenScalarCell(key int32) (*ScalarCell, error) {
	if key <= 0 {
		return nil, nil
	}

	seg, err := AttachSegment(int(key), 8)
	if err != nil {
		return nil, fmt.Errorf("scalar cell: open key=0x%x: %w", key, err)
	}

	return &ScalarCell{seg: seg, ptr: seg.Ptr()}, nil
}

// CreateScalarCell 创建 cell（测试 / 模拟 t-var 生产者用）
func CreateScalarCell(key int32, initial float64) (*ScalarCell, error) {
	seg, err := CreateSegment(int(key), 8)
	if err != nil {
		return nil, fmt.Errorf("scalar cell: create key=0x%x: %w", key, err)
	}
	c := &ScalarCell{seg: seg, ptr: seg.Ptr()}
	c.Store(initial)
	return c, nil
}

// Load 原子读取。nil 安全，未配置时返回 0。
func (c *ScalarCell) Load() float64 {
	if c == nil || c.ptr == nil {
		return 0
	}
	bits := atomic.LoadUint64((*uint64)(c.ptr))
	return math.Float64frombits(bits)
}

// Store 原子写入
func (c *ScalarCell) Store(v float64) {
	if c == nil || c.ptr == nil {
		return
	}
	atomic.StoreUint64((*uint64)(c.ptr), math.Float64bits(v))
}

// Close 分离段
func (c *ScalarCell) Close() error {
	if c == nil || c.seg == nil {
		return nil
	}
	return c.seg.Detach()
}

// Destroy 分离并删除段
func (c *ScalarCell) Destroy() error {
	if c == nil || c.seg == nil {
		return nil
	}
	if err := c.seg.Detach(); err != nil {
		return err
	}
	return c.seg.Remove()
}
