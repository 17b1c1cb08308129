// Copyright (c) 2021 Andy Pan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package parking

import (
	"math"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// Native parks on the kernel futex of the word itself. Every parked context
// holds an OS thread for the duration of the wait.
type Native struct{}

// NewNative returns the kernel-backed parker, ok is false where there is none.
func NewNative() (Parker, bool) {
	return Native{}, true
}

// AtomicWait implements Parker.
func (Native) AtomicWait(addr *uint32, expect uint32, timeout int64) Result {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout)
		ts = &t
	}

	_, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWait|futexPrivateFlag,
		uintptr(expect),
		uintptr(unsafe.Pointer(ts)),
		0, 0)
	switch e {
	case unix.EAGAIN:
		return NotEqual
	case unix.ETIMEDOUT:
		return TimedOut
	default:
		// 0, EINTR: callers re-check the word, so treat as a spurious wake.
		return OK
	}
}

// AtomicNotify implements Parker.
func (Native) AtomicNotify(addr *uint32, count uint32) uint32 {
	if count > math.MaxInt32 {
		count = math.MaxInt32
	}
	r, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWake|futexPrivateFlag,
		uintptr(count),
		0, 0, 0)
	if e != 0 {
		return 0
	}
	return uint32(r)
}
