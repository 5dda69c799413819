package shm

import (
	"fmt"
	"syscall"
	"unsafe"
)

const (
	ipcCreat = 01000
	ipcExcl  = 02000
	ipcRmid  = 0
)

// Segment 已挂载的 SysV 共享内存段
type Segment struct {
	ID   int
	Addr uintptr
	Size int
}

// AttachSegment 挂载已存在的段。段由外部网关进程创建，
// 策略进程只挂载不创建。
func AttachSegment(key, size int) (*Segment, error) {
	totalBytes := pageAlign(size)
	id, _, errno := syscall.Syscall(sysGET, uintptr(key), uintptr(totalBytes), uintptr(0666))
	if errno != 0 {
		return nil, fmt.Errorf("shmget(key=0x%x, size=%d): %w", key, totalBytes, errno)
	}

	addr, _, errno := syscall.Syscall(sysAT, id, 0, 0)
	if errno != 0 {
		return nil, fmt.Errorf("shmat(id=%d): %w", id, errno)
	}

	return &Segment{ID: int(id), Addr: addr, Size: totalBytes}, nil
}

// CreateSegment 创建新段；已存在时退化为挂载。测试和模拟网关用。
func CreateSegment(key, size int) (*Segment, error) {
	totalBytes := pageAlign(size)
	id, _, errno := syscall.Syscall(sysGET, uintptr(key), uintptr(totalBytes), uintptr(ipcCreat|ipcExcl|0666))
	if errno != 0 {
		if errno != syscall.EEXIST {
			return nil, fmt.Errorf("shmget(key=0x%x, size=%d, create): %w", key, totalBytes, errno)
		}
		id, _, errno = syscall.Syscall(sysGET, uintptr(key), uintptr(totalBytes), uintptr(ipcCreat|0666))
		if errno != 0 {
			return nil, fmt.Errorf("shmget(key=0x%x, size=%d, existing): %w", key, totalBytes, errno)
		}
	}

	addr, _, errno := syscall.Syscall(sysAT, id, 0, 0)
	if errno != 0 {
		return nil, fmt.Errorf("shmat(id=%d): %w", id, errno)
	}

	return &Segment{ID: int(id), Addr: addr, Size: totalBytes}, nil
}

// Detach 从本进程分离
func (s *Segment) Detach() error {
	_, _, errno := syscall.Syscall(sysDT, s.Addr, 0, 0)
	if errno != 0 {
		return fmt.Errorf("shmdt(addr=0x%x): %w", s.Addr, errno)
	}
	return nil
}

// Remove 标记段删除（最后一个挂载者分离后回收）
func (s *Segment) Remove() error {
	_, _, errno := syscall.Syscall(sysCTL, uintptr(s.ID), ipcRmid, 0)
	if errno != 0 {
		return fmt.Errorf("shmctl(id=%d, IPC_RMID): %w", s.ID, errno)
	}
	return nil
}

// Ptr 返回段基地址
func (s *Segment) Ptr() unsafe.Pointer {
	return unsafe.Pointer(s.Addr)
}

// pageAlign 向上取整到页边界
func pageAlign(size int) int {
	pageSize := syscall.Getpagesize()
	if size%pageSize == 0 {
		return size
	}
	return size + pageSize - (size % pageSize)
}
