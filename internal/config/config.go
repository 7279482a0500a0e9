package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Backend names accepted by -backend.
const (
	BackendMemory   = "memory"
	BackendRest     = "rest"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	ServerAddr        string
	Backend           string
	RestURL           string
	RestToken         string
	RedisAddr         string
	DatabaseDSN       string
	AdminPassword     string
	SigningKey        []byte
	AllowedOrigins    []string
	SweepInterval     time.Duration
	InactivityTimeout time.Duration
}

type Params struct {
	ServerAddr        string
	Backend           string
	RestURL           string
	RestToken         string
	RedisAddr         string
	DatabaseDSN       string
	AdminPassword     string
	Base64Secret      string
	AllowedOrigins    []string
	SweepInterval     time.Duration
	InactivityTimeout time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.AdminPassword == "" {
		return nil, fmt.Errorf("admin password cannot be empty")
	}
	if p.Base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	switch p.Backend {
	case BackendMemory:
	case BackendRest:
		if p.RestURL == "" {
			return nil, fmt.Errorf("rest backend requires a base URL")
		}
	case BackendRedis:
		if p.RedisAddr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
	case BackendPostgres:
		if p.DatabaseDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", p.Backend)
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(p.Base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if p.SweepInterval <= 0 {
		p.SweepInterval = 30 * time.Second
	}
	if p.InactivityTimeout <= 0 {
		p.InactivityTimeout = 2 * time.Minute
	}

	return &Config{
		ServerAddr:        p.ServerAddr,
		Backend:           p.Backend,
		RestURL:           p.RestURL,
		RestToken:         p.RestToken,
		RedisAddr:         p.RedisAddr,
		DatabaseDSN:       p.DatabaseDSN,
		AdminPassword:     p.AdminPassword,
		SigningKey:        signingKey,
		AllowedOrigins:    p.AllowedOrigins,
		SweepInterval:     p.SweepInterval,
		InactivityTimeout: p.InactivityTimeout,
	}, nil
}
