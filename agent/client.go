package agent

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alkorolyov/dcmon/internal/auth"
)

// Client is a thin HTTP wrapper around nightwatchd's agent-facing API
// surface: registration, metric/log push, and command poll/result.
// It carries the bearer token once enrolled and is safe for concurrent use
// (net/http.Client already is; Client adds no further shared mutable state
// beyond the token, which is set once at startup).
type Client struct {
	baseURL     string
	bearerToken string
	http        *http.Client
}

// NewClient builds a Client against serverURL. insecureSkipVerify matches
// spec §6.4's `insecure_skip_verify`, intended for local development only.
func NewClient(serverURL string, insecureSkipVerify bool) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
	}
	return &Client{
		baseURL: serverURL,
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

// SetBearerToken installs the token returned from Register (or loaded from
// auth_dir/client_token) for use on every subsequent request.
func (c *Client) SetBearerToken(token string) {
	c.bearerToken = token
}

// RegisterRequest mirrors internal/auth.RegistrationPayload plus the
// signature and admin token, base64-encoding the binary fields the same
// way internal/httpserver.registerRequest expects them on the wire.
type RegisterRequest struct {
	AgentID    string
	Hostname   string
	PublicKey  []byte
	Nonce      string
	Timestamp  int64
	Signature  []byte
	AdminToken string
}

// Register performs the enrollment handshake against POST
// /api/clients/register and returns the bearer token to persist.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	body := map[string]any{
		"agent_id":    req.AgentID,
		"hostname":    req.Hostname,
		"public_key":  base64.StdEncoding.EncodeToString(req.PublicKey),
		"nonce":       req.Nonce,
		"timestamp":   req.Timestamp,
		"signature":   base64.StdEncoding.EncodeToString(req.Signature),
		"admin_token": req.AdminToken,
	}

	var resp struct {
		AgentID     string `json:"agent_id"`
		BearerToken string `json:"bearer_token"`
	}
	if err := c.post(ctx, "/api/clients/register", false, body, &resp); err != nil {
		return "", err
	}
	return resp.BearerToken, nil
}

// Verify confirms the installed bearer token is still accepted.
func (c *Client) Verify(ctx context.Context) error {
	return c.get(ctx, "/api/client/verify", nil)
}

// PushMetrics posts one batch to POST /api/metrics.
func (c *Client) PushMetrics(ctx context.Context, batch MetricsBatchWire) (IngestResultWire, error) {
	var resp IngestResultWire
	err := c.post(ctx, "/api/metrics", true, batch, &resp)
	return resp, err
}

// PushLogs posts one batch to POST /api/logs.
func (c *Client) PushLogs(ctx context.Context, batch LogBatchWire) error {
	return c.post(ctx, "/api/logs", true, batch, nil)
}

// PollCommands long-polls GET /api/commands/{agent_id} for newly-delivered
// commands.
func (c *Client) PollCommands(ctx context.Context, agentID string) ([]CommandWire, error) {
	var resp struct {
		Commands []CommandWire `json:"commands"`
	}
	if err := c.get(ctx, "/api/commands/"+agentID, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// SubmitResult posts the outcome of one executed command.
func (c *Client) SubmitResult(ctx context.Context, result CommandResultWire) error {
	return c.post(ctx, "/api/command-results", true, result, nil)
}

func (c *Client) post(ctx context.Context, path string, authenticated bool, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	return c.do(req, out)
}

// RetryAfter is returned by do whenever the server responds 503, per spec
// §5's backpressure contract. Seconds comes from the Retry-After header,
// or is 1 when the header is absent or not an integer.
type RetryAfter struct {
	Seconds int
}

func (e *RetryAfter) Error() string {
	return fmt.Sprintf("server requested retry after %ds", e.Seconds)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		seconds := 1
		if h := resp.Header.Get("Retry-After"); h != "" {
			if v, err := strconv.Atoi(h); err == nil {
				seconds = v
			}
		}
		return &RetryAfter{Seconds: seconds}
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("server responded %d: %s: %s", resp.StatusCode, apiErr.Error, apiErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newNonce generates a random per-registration-attempt nonce, hex-encoded.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BuildRegistration assembles and signs a RegisterRequest from this agent's
// identity and keypair, reproducing the exact canonical byte form
// internal/auth.Enroller verifies server-side.
func BuildRegistration(agentID, hostname, adminToken string, keys *KeyPair, now time.Time) (RegisterRequest, error) {
	nonce, err := newNonce()
	if err != nil {
		return RegisterRequest{}, err
	}

	payload := auth.RegistrationPayload{
		AgentID:   agentID,
		Hostname:  hostname,
		PublicKey: keys.PublicKeyDER,
		Nonce:     nonce,
		Timestamp: now.Unix(),
	}
	sig, err := keys.Sign(payload.Canonical())
	if err != nil {
		return RegisterRequest{}, fmt.Errorf("signing registration payload: %w", err)
	}

	return RegisterRequest{
		AgentID:    agentID,
		Hostname:   hostname,
		PublicKey:  keys.PublicKeyDER,
		Nonce:      nonce,
		Timestamp:  payload.Timestamp,
		Signature:  sig,
		AdminToken: adminToken,
	}, nil
}
