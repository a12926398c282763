package registry

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultClientTimeout = 10 * time.Second

// Client adapts a remote asset registry speaking the JSON capability API to
// the engine's TokenRegistry interface. The remote service remains the sole
// source of truth; nothing is cached between calls.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a registry client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("registry: base URL required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("registry: invalid base URL: %w", err)
	}
	return &Client{
		baseURL: trimmed,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

type ownerResponse struct {
	Owner string `json:"owner"`
}

type approvedResponse struct {
	Approved bool   `json:"approved"`
	Spender  string `json:"spender,omitempty"`
}

type transferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"tokenId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OwnerOf implements swap.TokenRegistry.
func (c *Client) OwnerOf(tokenID *big.Int) ([20]byte, error) {
	var resp ownerResponse
	if err := c.get(fmt.Sprintf("/tokens/%s/owner", tokenString(tokenID)), &resp); err != nil {
		return [20]byte{}, err
	}
	return parseAddress(resp.Owner)
}

// Transfer implements swap.TokenRegistry.
func (c *Client) Transfer(from, to [20]byte, tokenID *big.Int) error {
	body := transferRequest{
		From:    formatAddress(from),
		To:      formatAddress(to),
		TokenID: tokenString(tokenID),
	}
	return c.post("/transfers", body)
}

// IsApprovedForAll implements swap.TokenRegistry.
func (c *Client) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	var resp approvedResponse
	path := fmt.Sprintf("/approvals/%s/%s", formatAddress(owner), formatAddress(operator))
	if err := c.get(path, &resp); err != nil {
		return false, err
	}
	return resp.Approved, nil
}

// ApprovedFor implements swap.TokenRegistry.
func (c *Client) ApprovedFor(tokenID *big.Int) ([20]byte, error) {
	var resp approvedResponse
	if err := c.get(fmt.Sprintf("/tokens/%s/approval", tokenString(tokenID)), &resp); err != nil {
		return [20]byte{}, err
	}
	if strings.TrimSpace(resp.Spender) == "" {
		return [20]byte{}, nil
	}
	return parseAddress(resp.Spender)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("registry: decode response: %w", err)
	}
	return nil
}

func (c *Client) post(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("registry: encode request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return fmt.Errorf("registry: %s (status %d)", payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("registry: unexpected status %d", resp.StatusCode)
}

func tokenString(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if len(cleaned) != 40 {
		return out, fmt.Errorf("registry: address must be 20 bytes, got %q", raw)
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("registry: invalid address %q: %w", raw, err)
	}
	copy(out[:], decoded)
	return out, nil
}
