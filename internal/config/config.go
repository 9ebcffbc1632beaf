package config

import (
	"encoding/base64"
	"fmt"
)

const (
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
)

type Config struct {
	ApiBaseUrl   string
	Transport    string
	WsUrl        string
	RedisAddr    string
	SessionToken string
	DebugAddr    string
	SigningKey   []byte
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(apiBaseUrl, transport, wsUrl, redisAddr, sessionToken, base64Secret, debugAddr string) (*Config, error) {
	if apiBaseUrl == "" {
		return nil, fmt.Errorf("API base URL cannot be empty")
	}
	if sessionToken == "" {
		return nil, fmt.Errorf("session token cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	switch transport {
	case TransportWebsocket:
		if wsUrl == "" {
			return nil, fmt.Errorf("websocket URL cannot be empty for the websocket transport")
		}
	case TransportRedis:
		if redisAddr == "" {
			return nil, fmt.Errorf("redis address cannot be empty for the redis transport")
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ApiBaseUrl:   apiBaseUrl,
		Transport:    transport,
		WsUrl:        wsUrl,
		RedisAddr:    redisAddr,
		SessionToken: sessionToken,
		DebugAddr:    debugAddr,
		SigningKey:   signingKey,
	}, nil
}
