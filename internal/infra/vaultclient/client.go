package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSecretNotFound is returned when the KV path holds no secret.
var ErrSecretNotFound = errors.New("vault secret not found")

// Client talks to a HashiCorp Vault KV v2 mount over HTTP.
type Client struct {
	addr       string
	token      string
	mount      string
	httpClient *http.Client
}

func New(addr, token, mount string) *Client {
	if mount == "" {
		mount = "secret"
	}
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		mount:      strings.Trim(mount, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// DataPath maps a logical secret name to its KV v2 data path.
func (c *Client) DataPath(name string) string {
	return c.mount + "/data/" + strings.TrimLeft(name, "/")
}

// ReadKV decodes the latest version of the secret at name into out.
func (c *Client) ReadKV(ctx context.Context, name string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, name, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	default:
		return fmt.Errorf("vault read failed: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if len(envelope.Data.Data) == 0 || string(envelope.Data.Data) == "null" {
		return fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	}
	return json.Unmarshal(envelope.Data.Data, out)
}

// WriteKV stores payload as a new version of the secret at name.
func (c *Client) WriteKV(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(map[string]any{"data": payload})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, name, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("vault write failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, name string, body io.Reader) (*http.Request, error) {
	if c == nil {
		return nil, errors.New("vault client is nil")
	}
	if c.addr == "" || c.token == "" {
		return nil, errors.New("vault addr or token missing")
	}
	if name == "" {
		return nil, errors.New("vault path is required")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+"/v1/"+c.DataPath(name), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", c.token)
	return req, nil
}
