package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ghifiardi/gatra-world-monitor/pkg/a2a"
)

// Client is a thin JSON-RPC and admin-API client for one gateway.
type Client struct {
	BaseURL    string
	APIKey     string
	AgentID    string
	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Send runs message/send. A non-empty nonce rides the replay header.
func (c *Client) Send(ctx context.Context, params a2a.SendParams, nonce string) (a2a.Task, error) {
	return c.rpcTask(ctx, "message/send", params, nonce)
}

// Get runs tasks/get.
func (c *Client) Get(ctx context.Context, params a2a.QueryParams) (a2a.Task, error) {
	return c.rpcTask(ctx, "tasks/get", params, "")
}

// Cancel runs tasks/cancel.
func (c *Client) Cancel(ctx context.Context, id string) (a2a.Task, error) {
	return c.rpcTask(ctx, "tasks/cancel", a2a.QueryParams{ID: id}, "")
}

func (c *Client) rpcTask(ctx context.Context, method string, params interface{}, nonce string) (a2a.Task, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return a2a.Task{}, err
	}
	reqID, _ := json.Marshal(uuid.New().String())
	body, err := json.Marshal(a2a.Request{JSONRPC: "2.0", ID: reqID, Method: method, Params: rawParams})
	if err != nil {
		return a2a.Task{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/a2a", bytes.NewReader(body))
	if err != nil {
		return a2a.Task{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setIdentity(req)
	if nonce != "" {
		req.Header.Set("x-a2a-nonce", nonce)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return a2a.Task{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return a2a.Task{}, err
	}

	var envelope a2a.Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return a2a.Task{}, fmt.Errorf("invalid gateway response: %w", err)
	}
	if envelope.Error != nil {
		return a2a.Task{}, fmt.Errorf("gateway error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	resultRaw, err := json.Marshal(envelope.Result)
	if err != nil {
		return a2a.Task{}, err
	}
	var task a2a.Task
	if err := json.Unmarshal(resultRaw, &task); err != nil {
		return a2a.Task{}, fmt.Errorf("invalid task in response: %w", err)
	}
	return task, nil
}

// Scores fetches the CII table.
func (c *Client) Scores(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/cii/scores", nil)
	if err != nil {
		return nil, err
	}
	c.setIdentity(req)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	var out struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Scores, nil
}

// SetScore updates one CII entry.
func (c *Client) SetScore(ctx context.Context, country string, score float64) error {
	body, _ := json.Marshal(map[string]interface{}{"country": country, "score": score})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/v1/cii/scores", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setIdentity(req)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return string(raw), nil
}

func (c *Client) setIdentity(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}
	if c.AgentID != "" {
		req.Header.Set("x-a2a-agent-id", c.AgentID)
	}
}
