//go:build !amd64 && !386

package lock

const hasBitTestAndSet = false
