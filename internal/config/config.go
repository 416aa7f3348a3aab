// Package config resolves the benchmark configuration from defaults,
// environment variables, and an optional YAML scenario file. Flags in
// cmd/obu-bench layer on top of the resolved values.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Config is the full knob surface. Defaults mirror the original
// workload: 10 users spawned at 2/s for 10 minutes against localhost
// endpoints, 10-50ms think-time, 10s request timeout.
type Config struct {
	JSONRPCURL string
	RESTURL    string
	CoAPHost   string
	CoAPPort   int
	CoAPPath   string

	EnableJSONRPC bool
	EnableCoAP    bool
	EnableREST    bool

	JSONRPCWeight int
	CoAPWeight    int
	RESTWeight    int

	CarName string

	Users          int
	SpawnRate      float64
	Duration       time.Duration
	ThinkMin       time.Duration
	ThinkMax       time.Duration
	RequestTimeout time.Duration
}

func Default() Config {
	return Config{
		JSONRPCURL:     "http://localhost:4000/jsonrpc",
		RESTURL:        "http://localhost:5000/externalLights",
		CoAPHost:       "localhost",
		CoAPPort:       5683,
		CoAPPath:       "60001",
		EnableJSONRPC:  true,
		EnableCoAP:     true,
		EnableREST:     true,
		JSONRPCWeight:  1,
		CoAPWeight:     1,
		RESTWeight:     1,
		CarName:        "roadrunner",
		Users:          10,
		SpawnRate:      2,
		Duration:       10 * time.Minute,
		ThinkMin:       10 * time.Millisecond,
		ThinkMax:       50 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
	}
}

// FromEnv layers environment overrides onto the defaults. Unset or
// malformed variables fall back silently, matching the permissive
// getenv handling the tooling around this benchmark expects.
func FromEnv() Config {
	c := Default()
	envString(&c.JSONRPCURL, "JSONRPC_URL")
	envString(&c.RESTURL, "REST_URL")
	envString(&c.CoAPHost, "COAP_HOST")
	envInt(&c.CoAPPort, "COAP_PORT")
	envString(&c.CoAPPath, "COAP_PATH")
	envBool(&c.EnableJSONRPC, "ENABLE_JSONRPC")
	envBool(&c.EnableCoAP, "ENABLE_COAP")
	envBool(&c.EnableREST, "ENABLE_REST")
	envInt(&c.JSONRPCWeight, "JSONRPC_WEIGHT")
	envInt(&c.CoAPWeight, "COAP_WEIGHT")
	envInt(&c.RESTWeight, "REST_WEIGHT")
	envString(&c.CarName, "CAR_NAME")
	envInt(&c.Users, "USERS")
	envFloat(&c.SpawnRate, "SPAWN_RATE")
	envDuration(&c.Duration, "DURATION")
	envDuration(&c.ThinkMin, "THINK_MIN")
	envDuration(&c.ThinkMax, "THINK_MAX")
	envDuration(&c.RequestTimeout, "REQUEST_TIMEOUT")
	return c
}

// CoAPAddr joins host and port for the bridge dial.
func (c Config) CoAPAddr() string {
	return net.JoinHostPort(c.CoAPHost, strconv.Itoa(c.CoAPPort))
}

func (c Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("users must be positive, got %d", c.Users)
	}
	if c.SpawnRate <= 0 {
		return fmt.Errorf("spawn rate must be positive, got %g", c.SpawnRate)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", c.Duration)
	}
	if c.ThinkMin <= 0 || c.ThinkMax < c.ThinkMin {
		return fmt.Errorf("think-time interval [%s, %s] is invalid", c.ThinkMin, c.ThinkMax)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if !c.EnableJSONRPC && !c.EnableCoAP && !c.EnableREST {
		return fmt.Errorf("no protocols enabled")
	}
	weights := 0
	if c.EnableJSONRPC {
		weights += c.JSONRPCWeight
	}
	if c.EnableCoAP {
		weights += c.CoAPWeight
	}
	if c.EnableREST {
		weights += c.RESTWeight
	}
	if weights <= 0 {
		return fmt.Errorf("enabled protocols have zero total weight")
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
