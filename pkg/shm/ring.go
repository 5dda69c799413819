package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// ringHeader 与 C++ 网关侧的队列头逐字节一致，整体占一个 cache line。
//
//	[capacity u32][elemSize u32][writerSeq u64][readerSeq u64][pad → 64B]
type ringHeader struct {
	Capacity  uint32
	ElemSize  uint32
	WriterSeq uint64
	ReaderSeq uint64
	_pad      [40]byte
}

const ringHeaderSize = unsafe.Sizeof(ringHeader{})

// RingQueue 共享内存多写多读环形队列。
//
// 段布局: [ringHeader][slot[0]]...[slot[capacity-1]]
// slot = [T data][uint64 seq]，seq 为写入槽位时的 1 基序号，0 表示未发布。
//
// 写侧用 CAS 抢占 writerSeq，writerSeq-readerSeq >= capacity 时队列满。
// 读侧每个挂载进程持有本地游标（广播语义：每个策略进程看到全部记录，
// 按 client-id / symbol 自行过滤），并把进度推进到 readerSeq 供写侧判满。
type RingQueue[T any] struct {
	seg      *Segment
	hdr      *ringHeader
	slots    uintptr
	size     uint64 // 2 的幂
	mask     uint64
	elemSize uintptr
	dataSize uintptr
	cursor   uint64 // 读侧本地游标，不在 SHM 中
}

// AttachRingQueue 挂载已有队列段。elemSizeOverride 用于 C++ 侧
// 带 aligned 属性导致槽位再膨胀的结构（>0 时生效）。
func AttachRingQueue[T any](shmKey, queueSize int, elemSizeOverride ...uintptr) (*RingQueue[T], error) {
	q, seg, err := mapRing[T](shmKey, queueSize, false, elemSizeOverride...)
	if err != nil {
		return nil, err
	}

	// 头部由创建方写入；挂载时校验，防止两侧布局漂移
	cap32 := atomic.LoadUint32(&q.hdr.Capacity)
	es32 := atomic.LoadUint32(&q.hdr.ElemSize)
	if cap32 != 0 && uint64(cap32) != q.size {
		seg.Detach()
		return nil, fmt.Errorf("ring key=0x%x: capacity mismatch: segment=%d local=%d", shmKey, cap32, q.size)
	}
	if es32 != 0 && uintptr(es32) != q.elemSize {
		seg.Detach()
		return nil, fmt.Errorf("ring key=0x%x: elemSize mismatch: segment=%d local=%d", shmKey, es32, q.elemSize)
	}

	// 从当前写位置开始读，不回放历史
	q.cursor = atomic.LoadUint64(&q.hdr.WriterSeq)
	return q, nil
}

// CreateRingQueue 创建并初始化队列段（测试 / 模拟网关用）
func CreateRingQueue[T any](shmKey, queueSize int, elemSizeOverride ...uintptr) (*RingQueue[T], error) {
	q, _, err := mapRing[T](shmKey, queueSize, true, elemSizeOverride...)
	if err != nil {
		return nil, err
	}

	atomic.StoreUint32(&q.hdr.Capacity, uint32(q.size))
	atomic.StoreUint32(&q.hdr.ElemSize, uint32(q.elemSize))
	atomic.StoreUint64(&q.hdr.WriterSeq, 0)
	atomic.StoreUint64(&q.hdr.ReaderSeq, 0)
	memZero(unsafe.Pointer(q.slots), uintptr(q.size)*q.elemSize)
	q.cursor = 0
	return q, nil
}

func mapRing[T any](shmKey, queueSize int, create bool, elemSizeOverride ...uintptr) (*RingQueue[T], *Segment, error) {
	size := uint64(nextPowerOf2(int64(queueSize)))

	var zero T
	dataSize := unsafe.Sizeof(zero)
	elemSize := dataSize + 8 // + uint64 seq
	if len(elemSizeOverride) > 0 && elemSizeOverride[0] > 0 {
		elemSize = elemSizeOverride[0]
	}

	totalBytes := int(ringHeaderSize + uintptr(size)*elemSize)

	var seg *Segment
	var err error
	if create {
		seg, err = CreateSegment(shmKey, totalBytes)
	} else {
		seg, err = AttachSegment(shmKey, totalBytes)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ring key=0x%x: %w", shmKey, err)
	}

	q := &RingQueue[T]{
		seg:      seg,
		hdr:      (*ringHeader)(unsafe.Pointer(seg.Addr)),
		slots:    seg.Addr + ringHeaderSize,
		size:     size,
		mask:     size - 1,
		elemSize: elemSize,
		dataSize: dataSize,
	}
	return q, seg, nil
}

// TryEnqueue 无阻塞入队。队列满返回 false，调用方自行退避重试。
func (q *RingQueue[T]) TryEnqueue(value *T) bool {
	for {
		w := atomic.LoadUint64(&q.hdr.WriterSeq)
		r := atomic.LoadUint64(&q.hdr.ReaderSeq)
		if w-r >= q.size {
			return false
		}
		if !atomic.CompareAndSwapUint64(&q.hdr.WriterSeq, w, w+1) {
			continue
		}

		slotAddr := q.slots + uintptr(w&q.mask)*q.elemSize
		memCopy(unsafe.Pointer(slotAddr), unsafe.Pointer(value), q.dataSize)

		// seq 最后写，发布槽位
		seqPtr := (*uint64)(unsafe.Pointer(slotAddr + q.dataSize))
		atomic.StoreUint64(seqPtr, w+1)
		return true
	}
}

// Dequeue 读出下一条记录，队列空返回 false。
func (q *RingQueue[T]) Dequeue(out *T) bool {
	slotAddr := q.slots + uintptr(q.cursor&q.mask)*q.elemSize
	seqPtr := (*uint64)(unsafe.Pointer(slotAddr + q.dataSize))

	seq := atomic.LoadUint64(seqPtr)
	if seq < q.cursor+1 {
		return false
	}

	memCopy(unsafe.Pointer(out), unsafe.Pointer(slotAddr), q.dataSize)
	// seq 可能领先本地游标（慢读者被覆盖写追上），直接跳到已发布位置
	q.cursor = seq
	q.publishProgress(seq)
	return true
}

// IsEmpty 判断当前游标处是否有新记录
func (q *RingQueue[T]) IsEmpty() bool {
	slotAddr := q.slots + uintptr(q.cursor&q.mask)*q.elemSize
	seqPtr := (*uint64)(unsafe.Pointer(slotAddr + q.dataSize))
	return atomic.LoadUint64(seqPtr) < q.cursor+1
}

// Depth 返回写侧视角的未消费记录数
func (q *RingQueue[T]) Depth() uint64 {
	w := atomic.LoadUint64(&q.hdr.WriterSeq)
	r := atomic.LoadUint64(&q.hdr.ReaderSeq)
	return w - r
}

// publishProgress 把本地进度 CAS 推进到头部 readerSeq（只前进不后退）
func (q *RingQueue[T]) publishProgress(seq uint64) {
	for {
		r := atomic.LoadUint64(&q.hdr.ReaderSeq)
		if r >= seq {
			return
		}
		if atomic.CompareAndSwapUint64(&q.hdr.ReaderSeq, r, seq) {
			return
		}
	}
}

// Close 分离段
func (q *RingQueue[T]) Close() error {
	return q.seg.Detach()
}

// Destroy 分离并删除段
func (q *RingQueue[T]) Destroy() error {
	if err := q.seg.Detach(); err != nil {
		return err
	}
	return q.seg.Remove()
}

// Segment 返回底层段
func (q *RingQueue[T]) Segment() *Segment {
	return q.seg
}

// nextPowerOf2 返回 >= value 的最小 2 的幂
func nextPowerOf2(value int64) int64 {
	if value <= 0 {
		return 1
	}
	if value&(value-1) == 0 {
		return value
	}
	result := int64(1)
	for result < value {
		result <<= 1
	}
	return result
}

// memCopy 按字节拷贝，不走 CGO
func memCopy(dst, src unsafe.Pointer, n uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}

// memZero 清零 n 字节
func memZero(ptr unsafe.Pointer, n uintptr) {
	s := unsafe.Slice((*byte)(ptr), n)
	for i := range s {
		s[i] = 0
	}
}
