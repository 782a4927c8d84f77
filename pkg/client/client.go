// Package client is a typed HTTP client for the process-pastry daemon
// API, suitable for the CLI and for embedding.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client talks to a running process-pastry daemon.
type Client struct {
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
	username string
	password string
}

// Config holds client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Username string // basic auth, optional
	Password string
	Logger   *slog.Logger // optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // skip TLS verification
}

// TLSClientConfig holds TLS configuration for the client.
type TLSClientConfig struct {
	Enabled    bool
	CACert     string // CA certificate file path
	ServerName string // server name for verification
	SkipVerify bool
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 30 * time.Second,
	}
}

// New creates a new API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if (config.TLS != nil && config.TLS.Enabled) || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL:  config.BaseURL,
		logger:   config.Logger,
		username: config.Username,
		password: config.Password,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	var st ProcessStatus
	return c.do(ctx, http.MethodGet, c.baseURL+"/status", nil, &st) == nil
}

// GetEnv fetches the current env file contents.
func (c *Client) GetEnv(ctx context.Context) (map[string]string, error) {
	var m map[string]string
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/env", nil, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReplaceEnv overwrites the env file wholesale. restart controls the
// restart-skip flag; the default operator flow restarts.
func (c *Client) ReplaceEnv(ctx context.Context, env map[string]string, restart bool) (UpdateResult, error) {
	return c.writeEnv(ctx, http.MethodPut, env, restart)
}

// PatchEnv shallow-merges env over the current file contents.
func (c *Client) PatchEnv(ctx context.Context, env map[string]string, restart bool) (UpdateResult, error) {
	return c.writeEnv(ctx, http.MethodPatch, env, restart)
}

// Status returns the managed process state.
func (c *Client) Status(ctx context.Context) (ProcessStatus, error) {
	var st ProcessStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/status", nil, &st)
	return st, err
}

// Schema returns per-variable metadata derived from the example file.
func (c *Client) Schema(ctx context.Context) (map[string]VariableSchema, error) {
	var s map[string]VariableSchema
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/schema", nil, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) writeEnv(ctx context.Context, method string, env map[string]string, restart bool) (UpdateResult, error) {
	var res UpdateResult
	body, err := json.Marshal(env)
	if err != nil {
		return res, fmt.Errorf("marshal env: %w", err)
	}
	u := c.baseURL + "/env?restart=" + url.QueryEscape(fmt.Sprintf("%t", restart))
	err = c.do(ctx, method, u, body, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Message() != "" {
			return errors.New(er.Message())
		}
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// setupClientTLS configures TLS settings for the HTTP client.
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}
	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			caCert, err := os.ReadFile(config.TLS.CACert)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, errors.New("failed to parse CA certificate")
			}
			tlsConfig.RootCAs = pool
		}
	}
	return tlsConfig, nil
}
