package infra

import (
	_ "unsafe"
)

//go:linkname osYield runtime.osyield
func osYield()

// OsYield yields the OS thread, not only the goroutine.
func OsYield() {
	osYield()
}

//go:linkname procYield runtime.procyield
func procYield(cycles uint32)

// ProcYield spins the CPU for the given cycles (PAUSE on amd64).
func ProcYield(cycles uint32) {
	procYield(cycles)
}
