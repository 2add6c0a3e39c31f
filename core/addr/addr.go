// Package addr
// Author: momentics <momentics@gmail.com>
//
// Textual endpoint parsing for the link transport. Endpoints use the
// fixed form "socket://host:port"; nothing else is accepted. Parsing is
// pure so configuration errors surface before any socket work starts.

package addr

import (
	"fmt"
	"strconv"
	"strings"
)

// Scheme prefixes every valid endpoint.
const Scheme = "socket://"

// Parse splits "socket://host:port" into its parts. The scheme must match
// exactly, the host must be non-empty and the port must be a base-10
// integer in [0, 65535]. Port 0 is legal for listeners and means a
// kernel-assigned port.
func Parse(endpoint string) (host string, port int, err error) {
	rest, ok := strings.CutPrefix(endpoint, Scheme)
	if !ok {
		return "", 0, fmt.Errorf("endpoint %q: missing %q scheme", endpoint, Scheme)
	}
	host, portStr, ok := strings.Cut(rest, ":")
	if !ok || host == "" {
		return "", 0, fmt.Errorf("endpoint %q: want host:port after scheme", endpoint)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("endpoint %q: bad port %q", endpoint, portStr)
	}
	return host, port, nil
}

// Format renders host and port back into endpoint form.
func Format(host string, port int) string {
	return Scheme + host + ":" + strconv.Itoa(port)
}
