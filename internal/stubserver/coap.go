package stubserver

import (
	"bytes"
	"fmt"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	coapnet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpserver "github.com/plgd-dev/go-coap/v3/udp/server"

	"github.com/obulab/obu-bench/internal/codec"
	"github.com/obulab/obu-bench/internal/monitoring"
)

// codeFETCH is RFC 8132 FETCH (0.05); go-coap's codes table stops at
// DELETE.
const codeFETCH = codes.Code(5)

// CoAPServer binds the FETCH resource at /<SID> on a loopback UDP
// socket and answers with a CBOR CompactRecord, content-format 42.
type CoAPServer struct {
	srv  *udpserver.Server
	conn *coapnet.UDPConn
}

// StartCoAP listens on addr (use "127.0.0.1:0" for an ephemeral port)
// and serves in the background until Stop.
func StartCoAP(addr string, cfg Config, tmpl *codec.Template) (*CoAPServer, error) {
	picker := newStatusPicker()

	r := mux.NewRouter()
	path := fmt.Sprintf("/%d", codec.DefaultSID)
	handler := func(w mux.ResponseWriter, req *mux.Message) {
		if req.Code() != codeFETCH {
			_ = w.SetResponse(codes.MethodNotAllowed, message.TextPlain, bytes.NewReader(nil))
			return
		}
		body, err := req.ReadBody()
		if err != nil || string(body) != cfg.Vehicle {
			_ = w.SetResponse(codes.BadRequest, message.TextPlain,
				bytes.NewReader([]byte("unknown vehicle")))
			return
		}
		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
		payload, err := tmpl.Encode(cfg.Vehicle, picker.pick())
		if err != nil {
			_ = w.SetResponse(codes.InternalServerError, message.TextPlain, bytes.NewReader(nil))
			return
		}
		_ = w.SetResponse(codes.Content, message.AppOctets, bytes.NewReader(payload))
	}
	if err := r.Handle(path, mux.HandlerFunc(handler)); err != nil {
		return nil, err
	}

	conn, err := coapnet.NewListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind coap listener: %w", err)
	}
	srv := udp.NewServer(options.WithMux(r))
	go func() {
		if err := srv.Serve(conn); err != nil {
			monitoring.Debugf("coap stub server exited: %v", err)
		}
	}()
	return &CoAPServer{srv: srv, conn: conn}, nil
}

// Addr is the bound address, suitable for a bridge dial.
func (s *CoAPServer) Addr() string {
	return s.conn.LocalAddr().String()
}

func (s *CoAPServer) Stop() {
	s.srv.Stop()
	s.conn.Close()
}
