package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an optional YAML overlay. Every field is a pointer so a
// partial file only overrides what it names.
type Scenario struct {
	JSONRPCURL *string `yaml:"jsonrpc_url,omitempty"`
	RESTURL    *string `yaml:"rest_url,omitempty"`
	CoAPHost   *string `yaml:"coap_host,omitempty"`
	CoAPPort   *int    `yaml:"coap_port,omitempty"`
	CoAPPath   *string `yaml:"coap_path,omitempty"`

	EnableJSONRPC *bool `yaml:"enable_jsonrpc,omitempty"`
	EnableCoAP    *bool `yaml:"enable_coap,omitempty"`
	EnableREST    *bool `yaml:"enable_rest,omitempty"`

	JSONRPCWeight *int `yaml:"jsonrpc_weight,omitempty"`
	CoAPWeight    *int `yaml:"coap_weight,omitempty"`
	RESTWeight    *int `yaml:"rest_weight,omitempty"`

	CarName *string `yaml:"car_name,omitempty"`

	Users          *int     `yaml:"users,omitempty"`
	SpawnRate      *float64 `yaml:"spawn_rate,omitempty"`
	Duration       *string  `yaml:"duration,omitempty"` // duration string like "2m"
	ThinkMin       *string  `yaml:"think_min,omitempty"`
	ThinkMax       *string  `yaml:"think_max,omitempty"`
	RequestTimeout *string  `yaml:"request_timeout,omitempty"`
}

// ApplyScenario loads a YAML scenario file and overlays it onto c.
func (c *Config) ApplyScenario(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scenario file: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse scenario file: %w", err)
	}
	return c.apply(s)
}

func (c *Config) apply(s Scenario) error {
	setString(&c.JSONRPCURL, s.JSONRPCURL)
	setString(&c.RESTURL, s.RESTURL)
	setString(&c.CoAPHost, s.CoAPHost)
	setInt(&c.CoAPPort, s.CoAPPort)
	setString(&c.CoAPPath, s.CoAPPath)
	setBool(&c.EnableJSONRPC, s.EnableJSONRPC)
	setBool(&c.EnableCoAP, s.EnableCoAP)
	setBool(&c.EnableREST, s.EnableREST)
	setInt(&c.JSONRPCWeight, s.JSONRPCWeight)
	setInt(&c.CoAPWeight, s.CoAPWeight)
	setInt(&c.RESTWeight, s.RESTWeight)
	setString(&c.CarName, s.CarName)
	setInt(&c.Users, s.Users)
	if s.SpawnRate != nil {
		c.SpawnRate = *s.SpawnRate
	}
	for _, f := range []struct {
		dst *time.Duration
		src *string
		key string
	}{
		{&c.Duration, s.Duration, "duration"},
		{&c.ThinkMin, s.ThinkMin, "think_min"},
		{&c.ThinkMax, s.ThinkMax, "think_max"},
		{&c.RequestTimeout, s.RequestTimeout, "request_timeout"},
	} {
		if f.src == nil {
			continue
		}
		d, err := time.ParseDuration(*f.src)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", f.key, err)
		}
		*f.dst = d
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
