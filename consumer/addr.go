package consumer

import (
	"net"
	"strconv"
)

// brokerAddr returns host unchanged when it already names a port, otherwise host:port.
func brokerAddr(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
