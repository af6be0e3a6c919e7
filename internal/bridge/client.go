package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/models"
)

// Config holds connection parameters for the anomaly process.
type Config struct {
	Address         string
	Token           string
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	MaxPayloadBytes int64
	RequiredFields  []string
}

// Client polls the anomaly process with one short-lived connection per call.
type Client struct {
	cfg Config
}

// NewClient creates a Client, filling unset durations and limits with defaults.
func NewClient(cfg Config) *Client {
	normaliseConfig(&cfg)
	return &Client{cfg: cfg}
}

// Address returns the endpoint polled by the client.
func (c *Client) Address() string { return c.cfg.Address }

// Poll opens a connection, sends the token, reads until the server closes the
// stream and parses the reply as a JSON object. It never retries.
func (c *Client) Poll(ctx context.Context) (models.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, unreachable(err)
	}

	raw, err := c.exchange(ctx)
	if err != nil {
		return nil, err
	}
	return c.parse(raw)
}

func (c *Client) exchange(ctx context.Context) ([]byte, error) {
	dialer := net.Dialer{Timeout: deadlineOr(ctx, c.cfg.DialTimeout)}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, unreachable(fmt.Errorf("dial %s: %w", c.cfg.Address, err))
	}
	defer conn.Close()

	deadline := time.Now().Add(deadlineOr(ctx, c.cfg.ReadTimeout))
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, unreachable(err)
	}

	// Expire the deadline so a cancelled ctx unblocks the read.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := io.WriteString(conn, c.cfg.Token); err != nil {
		return nil, unreachable(fmt.Errorf("write token: %w", err))
	}
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = hc.CloseWrite()
	}

	limit := c.cfg.MaxPayloadBytes
	raw, err := io.ReadAll(io.LimitReader(conn, limit+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, unreachable(ctxErr)
		}
		return nil, unreachable(fmt.Errorf("read reply: %w", err))
	}
	if int64(len(raw)) > limit {
		return nil, invalidPayload(raw[:limit], fmt.Errorf("reply exceeds %d bytes", limit))
	}
	return raw, nil
}

func (c *Client) parse(raw []byte) (models.Payload, error) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return nil, invalidPayload(raw, errors.New("empty reply"))
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, invalidPayload(raw, fmt.Errorf("decode reply: %w", err))
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, invalidPayload(raw, errors.New("trailing data after object"))
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, invalidPayload(raw, fmt.Errorf("reply is %T, want object", value))
	}
	if msg, ok := object["error"]; ok && msg != nil {
		return nil, invalidPayload(raw, fmt.Errorf("model reported error: %v", msg))
	}

	var missing []string
	for _, field := range c.cfg.RequiredFields {
		if _, ok := object[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, invalidPayload(raw, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	return models.Payload(object), nil
}

func normaliseConfig(cfg *Config) {
	if cfg.Token == "" {
		cfg.Token = "ping\n"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 500 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 750 * time.Millisecond
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 64 << 10
	}
}

func deadlineOr(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return time.Millisecond
		}
		if d == 0 || remaining < d {
			return remaining
		}
	}
	if d <= 0 {
		return time.Millisecond
	}
	return d
}
