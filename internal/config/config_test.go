package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		apiUrl = "http://localhost:8080"
		wsUrl  = "ws://localhost:8080/ws"
		rAddr  = "localhost:6379"
		token  = "session-token"
		key    = "c29tZV9zZWNyZXQ="
	)

	tcases := []struct {
		name      string
		apiUrl    string
		transport string
		wsUrl     string
		redisAddr string
		token     string
		key       string
		err       bool
	}{
		{
			name:      "valid websocket config",
			apiUrl:    apiUrl,
			transport: TransportWebsocket,
			wsUrl:     wsUrl,
			token:     token,
			key:       key,
		},
		{
			name:      "valid redis config",
			apiUrl:    apiUrl,
			transport: TransportRedis,
			redisAddr: rAddr,
			token:     token,
			key:       key,
		},
		{
			name:      "empty API base URL",
			transport: TransportWebsocket,
			wsUrl:     wsUrl,
			token:     token,
			key:       key,
			err:       true,
		},
		{
			name:      "empty session token",
			apiUrl:    apiUrl,
			transport: TransportWebsocket,
			wsUrl:     wsUrl,
			key:       key,
			err:       true,
		},
		{
			name:      "empty signing secret",
			apiUrl:    apiUrl,
			transport: TransportWebsocket,
			wsUrl:     wsUrl,
			token:     token,
			err:       true,
		},
		{
			name:      "websocket transport without URL",
			apiUrl:    apiUrl,
			transport: TransportWebsocket,
			token:     token,
			key:       key,
			err:       true,
		},
		{
			name:      "redis transport without address",
			apiUrl:    apiUrl,
			transport: TransportRedis,
			token:     token,
			key:       key,
			err:       true,
		},
		{
			name:      "unknown transport",
			apiUrl:    apiUrl,
			transport: "carrier-pigeon",
			wsUrl:     wsUrl,
			token:     token,
			key:       key,
			err:       true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.apiUrl, tc.transport, tc.wsUrl, tc.redisAddr, tc.token, tc.key, "")
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.apiUrl, config.ApiBaseUrl)
			assert.Equal(t, tc.transport, config.Transport)
			assert.Equal(t, tc.token, config.SessionToken)
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
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
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match")
			}
		})
	}
}
