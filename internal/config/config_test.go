package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "http://localhost:4000/jsonrpc", c.JSONRPCURL)
	assert.Equal(t, "http://localhost:5000/externalLights", c.RESTURL)
	assert.Equal(t, "localhost:5683", c.CoAPAddr())
	assert.Equal(t, "roadrunner", c.CarName)
	assert.Equal(t, 10, c.Users)
	assert.Equal(t, 2.0, c.SpawnRate)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	require.NoError(t, c.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("JSONRPC_URL", "http://10.0.0.1:4000/jsonrpc")
	t.Setenv("COAP_PORT", "15683")
	t.Setenv("ENABLE_REST", "0")
	t.Setenv("USERS", "25")
	t.Setenv("SPAWN_RATE", "4.5")
	t.Setenv("DURATION", "90s")
	t.Setenv("COAP_WEIGHT", "3")

	c := FromEnv()
	assert.Equal(t, "http://10.0.0.1:4000/jsonrpc", c.JSONRPCURL)
	assert.Equal(t, 15683, c.CoAPPort)
	assert.False(t, c.EnableREST)
	assert.True(t, c.EnableJSONRPC)
	assert.Equal(t, 25, c.Users)
	assert.Equal(t, 4.5, c.SpawnRate)
	assert.Equal(t, 90*time.Second, c.Duration)
	assert.Equal(t, 3, c.CoAPWeight)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("USERS", "many")
	t.Setenv("DURATION", "soon")

	c := FromEnv()
	assert.Equal(t, 10, c.Users)
	assert.Equal(t, 10*time.Minute, c.Duration)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero users", func(c *Config) { c.Users = 0 }},
		{"negative spawn rate", func(c *Config) { c.SpawnRate = -1 }},
		{"zero duration", func(c *Config) { c.Duration = 0 }},
		{"inverted think interval", func(c *Config) { c.ThinkMin = 50 * time.Millisecond; c.ThinkMax = 10 * time.Millisecond }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"nothing enabled", func(c *Config) { c.EnableJSONRPC = false; c.EnableCoAP = false; c.EnableREST = false }},
		{"zero weights", func(c *Config) { c.JSONRPCWeight = 0; c.CoAPWeight = 0; c.RESTWeight = 0 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := Default()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateIgnoresDisabledWeights(t *testing.T) {
	t.Parallel()
	c := Default()
	c.EnableJSONRPC = false
	c.EnableREST = false
	c.JSONRPCWeight = 0
	c.RESTWeight = 0
	require.NoError(t, c.Validate(), "only enabled protocols count toward the weight total")
}
