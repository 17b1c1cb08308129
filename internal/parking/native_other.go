//go:build !linux

package parking

// NewNative returns the kernel-backed parker, ok is false where there is none.
func NewNative() (Parker, bool) {
	return nil, false
}
