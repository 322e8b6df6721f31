package camera

import (
	"log"
	"strings"
	_ "unsafe"

	"github.com/svanichkin/ttydisp/logs"
)

//go:linkname gocamLogger github.com/svanichkin/gocam.camLog
var gocamLogger *log.Logger

func init() {
	if gocamLogger == nil {
		return
	}
	gocamLogger.SetOutput(gocamLogWriter{})
	gocamLogger.SetFlags(0)
	gocamLogger.SetPrefix("")
}

// gocamLogWriter forwards capture backend chatter to the verbose log so it
// never lands on the terminal being drawn to.
type gocamLogWriter struct{}

func (gocamLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if msg == "" {
		return len(p), nil
	}
	logs.LogV("[camera] %s", msg)
	return len(p), nil
}
