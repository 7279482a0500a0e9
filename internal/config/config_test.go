package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	base := Params{
		ServerAddr:    "localhost:8080",
		Backend:       BackendMemory,
		AdminPassword: "hunter2",
		Base64Secret:  "c29tZV9zZWNyZXQ=",
	}

	tcases := []struct {
		name   string
		modify func(p *Params)
		err    bool
	}{
		{
			name:   "valid memory config",
			modify: func(p *Params) {},
		},
		{
			name:   "empty address",
			modify: func(p *Params) { p.ServerAddr = "" },
			err:    true,
		},
		{
			name:   "empty admin password",
			modify: func(p *Params) { p.AdminPassword = "" },
			err:    true,
		},
		{
			name:   "empty signing secret",
			modify: func(p *Params) { p.Base64Secret = "" },
			err:    true,
		},
		{
			name:   "invalid signing secret",
			modify: func(p *Params) { p.Base64Secret = "not_base64" },
			err:    true,
		},
		{
			name:   "unknown backend",
			modify: func(p *Params) { p.Backend = "etcd" },
			err:    true,
		},
		{
			name:   "rest backend without url",
			modify: func(p *Params) { p.Backend = BackendRest },
			err:    true,
		},
		{
			name: "rest backend with url",
			modify: func(p *Params) {
				p.Backend = BackendRest
				p.RestURL = "https://kv.example.com"
			},
		},
		{
			name:   "redis backend without address",
			modify: func(p *Params) { p.Backend = BackendRedis },
			err:    true,
		},
		{
			name: "redis backend with address",
			modify: func(p *Params) {
				p.Backend = BackendRedis
				p.RedisAddr = "localhost:6379"
			},
		},
		{
			name:   "postgres backend without dsn",
			modify: func(p *Params) { p.Backend = BackendPostgres },
			err:    true,
		},
		{
			name: "postgres backend with dsn",
			modify: func(p *Params) {
				p.Backend = BackendPostgres
				p.DatabaseDSN = "host=localhost user=postgres dbname=postgres sslmode=disable"
			},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			tc.modify(&params)

			config, err := NewConfig(params)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, params.ServerAddr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, params.Backend, config.Backend, "expected backend to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
}

func TestNewConfig_defaults(t *testing.T) {
	config, err := NewConfig(Params{
		ServerAddr:    "localhost:8080",
		Backend:       BackendMemory,
		AdminPassword: "hunter2",
		Base64Secret:  "c29tZV9zZWNyZXQ=",
	})
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, config.SweepInterval, "expected sweep interval default")
	assert.Equal(t, 2*time.Minute, config.InactivityTimeout, "expected inactivity timeout default")
}

func Test_decodeSigningSecret(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
