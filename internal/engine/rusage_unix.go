//go:build linux || darwin

package engine

import "syscall"

// processCPUTimes returns accumulated user and system CPU seconds for this
// process, backing the stats body's rusage-utime/rusage-stime fields.
func processCPUTimes() (userSec, sysSec float64) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	return float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6,
		float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
}
