// Package stubserver hosts loopback implementations of the three
// light-status interfaces. They exist to exercise the benchmark
// end-to-end (tests, -selftest) and reproduce only the wire contracts,
// not the real on-board unit.
package stubserver

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/obulab/obu-bench/internal/client"
	"github.com/obulab/obu-bench/internal/codec"
)

// Config is shared by all three stubs.
type Config struct {
	Vehicle string
	// Delay simulates the unit's work per request (the original
	// device sleeps 100ms). Zero keeps tests fast.
	Delay time.Duration
}

// statusPicker hands out a random light status per request, the way
// the simulated unit does.
type statusPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newStatusPicker() *statusPicker {
	return &statusPicker{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *statusPicker) pick() codec.LightStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return codec.RandomStatus(p.rng)
}

func yangOutput(name string, status codec.LightStatus) client.RESTResponse {
	var resp client.RESTResponse
	resp.Fetch.Output.CarStatus.Name = name
	resp.Fetch.Output.CarStatus.ExteriorLight = status.String()
	return resp
}

// RESTHandler serves POST {"carName": name} with the YANG-shaped JSON
// output.
func RESTHandler(cfg Config) http.Handler {
	picker := newStatusPicker()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			CarName string `json:"carName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.CarName != cfg.Vehicle {
			http.Error(w, "unknown vehicle", http.StatusNotFound)
			return
		}
		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(yangOutput(cfg.Vehicle, picker.pick()))
	})
}

type rpcEnvelope struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResult struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// JSONRPCHandler serves the JSON-RPC 2.0 "fetch" method with a single
// positional vehicle-name parameter.
func JSONRPCHandler(cfg Config) http.Handler {
	picker := newStatusPicker()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req rpcEnvelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		reply := rpcResult{JSONRPC: "2.0", ID: req.ID}

		var name string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &name)
		}
		switch {
		case req.Method != "fetch":
			reply.Error = &rpcError{Code: -32601, Message: "method not found"}
		case name != cfg.Vehicle:
			reply.Error = &rpcError{Code: -32602, Message: "unknown vehicle"}
		default:
			if cfg.Delay > 0 {
				time.Sleep(cfg.Delay)
			}
			reply.Result = yangOutput(cfg.Vehicle, picker.pick())
		}
		json.NewEncoder(w).Encode(reply)
	})
}
