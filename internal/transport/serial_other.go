//go:build !linux

package transport

import (
	"fmt"
	"os"
	"runtime"
)

func openSerial(port string, _ int) (*os.File, error) {
	return nil, fmt.Errorf("serial ports are not supported on %s", runtime.GOOS)
}
