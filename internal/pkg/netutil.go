package pkg

import (
	"net"
	"strconv"
)

// DefaultPort is the default TCP port for game sessions.
const DefaultPort = 9876

const (
	minPort = 1024
	maxPort = 65535
)

// IsValidPort reports whether port is inside the unprivileged range the
// client accepts before dialing.
func IsValidPort(port int) bool {
	return port >= minPort && port <= maxPort
}

// JoinHostPort formats host and a numeric port for net.Dial.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
