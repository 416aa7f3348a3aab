package stubserver

import (
	"net"
	"net/http"
	"strconv"
)

// HTTPServer is a loopback HTTP server on an ephemeral port, used for
// the JSON-RPC and REST stubs outside of test binaries.
type HTTPServer struct {
	srv *http.Server
	lis net.Listener
}

func StartHTTP(h http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: h}
	go srv.Serve(lis)
	return &HTTPServer{srv: srv, lis: lis}, nil
}

func (s *HTTPServer) URL() string {
	return "http://" + s.lis.Addr().String()
}

func (s *HTTPServer) Stop() {
	s.srv.Close()
}

// SplitAddr splits "host:port" with a numeric port.
func SplitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
