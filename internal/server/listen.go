package server

import (
	"fmt"
	"net"

	"github.com/yanizio/mailroom/internal/config"
)

// Listen binds app.Address().  Port 0 asks the kernel for a free port; the
// bound address is available from the returned listener.
func Listen(app config.ApplicationSettings) (net.Listener, error) {
	ln, err := net.Listen("tcp", app.Address())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", app.Address(), err)
	}
	return ln, nil
}
