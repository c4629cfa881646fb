package gdb

import (
	"errors"
	"strings"
)

// connectionErrors are GDB messages meaning OpenOCD could not be reached.
var connectionErrors = []string{
	"Connection refused",
	"Connection timed out",
	"No route to host",
	"Name or service not known",
	"Remote connection closed",
}

// DetectConnectionError scans GDB output for signs that the remote target
// was never reached and returns a *GDBConnectionError for the first one.
func DetectConnectionError(output, host string, port int) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		for _, pattern := range connectionErrors {
			if strings.Contains(line, pattern) {
				return &GDBConnectionError{
					Host: host,
					Port: port,
					Err:  errors.New(line),
				}
			}
		}
	}
	return nil
}
