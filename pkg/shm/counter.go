package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// counterCell 段布局: [atomic int64 next][int64 first] = 16 字节
type counterCell struct {
	Next  int64
	First int64
}

// ClientCounter 进程级 client-id 分配器。多个策略进程共享一个 cell，
// 启动时 fetch-add 取号，订单号 = clientID*OrderIDRange + 本地序号。
type ClientCounter struct {
	seg  *Segment
	next *int64
}

// AttachClientCounter 挂载已有 cell
func AttachClientCounter(shmKey int) (*ClientCounter, error) {
	seg, err := AttachSegment(shmKey, int(unsafe.Sizeof(counterCell{})))
	if err != nil {
		return nil, fmt.Errorf("client counter: attach key=0x%x: %w", shmKey, err)
	}
	return &ClientCounter{
		seg:  seg,
		next: (*int64)(unsafe.Pointer(seg.Addr)),
	}, nil
}

// CreateClientCounter 创建并初始化 cell（测试用）
func CreateClientCounter(shmKey int, firstID int64) (*ClientCounter, error) {
	seg, err := CreateSegment(shmKey, int(unsafe.Sizeof(counterCell{})))
	if err != nil {
		return nil, fmt.Errorf("client counter: create key=0x%x: %w", shmKey, err)
	}
	cc := &ClientCounter{
		seg:  seg,
		next: (*int64)(unsafe.Pointer(seg.Addr)),
	}
	atomic.StoreInt64(cc.next, firstID)
	firstPtr := (*int64)(unsafe.Pointer(seg.Addr + 8))
	*firstPtr = firstID
	return cc, nil
}

// Current 返回当前计数值
func (cc *ClientCounter) Current() int64 {
	return atomic.LoadInt64(cc.next)
}

// NextID 原子取号并自增
func (cc *ClientCounter) NextID() int64 {
	return atomic.AddInt64(cc.next, 1) - 1
}

// FirstID 返回初始值
func (cc *ClientCounter) FirstID() int64 {
	firstPtr := (*int64)(unsafe.Pointer(cc.seg.Addr + 8))
	return *firstPtr
}

// Close 分离段
func (cc *ClientCounter) Close() error {
	return cc.seg.Detach()
}

// Destroy 分离并删除段
func (cc *ClientCounter) Destroy() error {
	if err := cc.seg.Detach(); err != nil {
		return err
	}
	return cc.seg.Remove()
}
