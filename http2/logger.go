package http2

import "log"

func stdLogPrintf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
