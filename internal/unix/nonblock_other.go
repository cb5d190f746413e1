//go:build !linux && !darwin

// Package unix provides platform-specific Unix constants.
package unix

// ONonblock is zero where the control FIFO cannot be opened non-blocking.
const ONonblock = 0
