package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAllowed is returned by Assert when the decision is not allowed.
var ErrNotAllowed = errors.New("api: not allowed")

// Decision is the result envelope of a policy check. An absent result means
// the policy produced no value for the queried path.
type Decision struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// Allowed reports whether the decision's result is boolean true.
func (d Decision) Allowed() bool {
	return bytes.Equal(bytes.TrimSpace(d.Result), []byte("true"))
}

// CheckItem is one entry of a batched check.
type CheckItem struct {
	Path  string `json:"path"`
	Input any    `json:"input,omitempty"`
}

// checkRequest is the body of a single check call.
type checkRequest struct {
	Input any `json:"input,omitempty"`
}

// batchRequest is the body of a batched check call. Input, when set, is
// merged server-side into every item's input.
type batchRequest struct {
	Items []CheckItem `json:"items"`
	Input any         `json:"input,omitempty"`
}

type batchResponse struct {
	Result []Decision `json:"result"`
}

// Check queries the policy decision at path with the given input.
func (c *Client) Check(ctx context.Context, path string, input any) (Decision, error) {
	var body any
	if input != nil {
		body = checkRequest{Input: input}
	}
	resp, err := c.Do(ctx, http.MethodPost, dataPath(path), nil, body)
	if err != nil {
		return Decision{}, fmt.Errorf("check %q: %w", path, err)
	}
	var decision Decision
	if err := json.Unmarshal(resp, &decision); err != nil {
		return Decision{}, fmt.Errorf("check %q: decoding response: %w", path, err)
	}
	return decision, nil
}

// Allowed is a convenience over Check for boolean policies.
func (c *Client) Allowed(ctx context.Context, path string, input any) (bool, error) {
	decision, err := c.Check(ctx, path, input)
	if err != nil {
		return false, err
	}
	return decision.Allowed(), nil
}

// Assert returns ErrNotAllowed unless the decision at path is allowed.
func (c *Client) Assert(ctx context.Context, path string, input any) error {
	allowed, err := c.Allowed(ctx, path, input)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("assert %q: %w", path, ErrNotAllowed)
	}
	return nil
}

// BatchCheck queries a decision for every item. The optional global input
// is merged into each item's input by the service. Batches larger than the
// configured chunk size are split into sequential requests and the decisions
// concatenated, so the result is positional with items regardless of
// chunking.
func (c *Client) BatchCheck(ctx context.Context, items []CheckItem, input any) ([]Decision, error) {
	if len(items) == 0 {
		return nil, nil
	}

	decisions := make([]Decision, 0, len(items))
	for start := 0; start < len(items); start += c.cfg.BatchMaxItems {
		end := start + c.cfg.BatchMaxItems
		if end > len(items) {
			end = len(items)
		}

		resp, err := c.Do(ctx, http.MethodPost, "/data_batch", nil, batchRequest{
			Items: items[start:end],
			Input: input,
		})
		if err != nil {
			return nil, fmt.Errorf("batch check: %w", err)
		}
		var batch batchResponse
		if err := json.Unmarshal(resp, &batch); err != nil {
			return nil, fmt.Errorf("batch check: decoding response: %w", err)
		}
		if len(batch.Result) != end-start {
			return nil, fmt.Errorf("batch check: got %d decisions for %d items", len(batch.Result), end-start)
		}
		decisions = append(decisions, batch.Result...)
	}
	return decisions, nil
}

// Filter batch-checks one decision per element of seq against path and
// returns the elements whose decision is allowed, preserving order. toInput
// maps an element to the check input for that element.
func Filter[T any](ctx context.Context, c *Client, seq []T, path string, toInput func(T) any) ([]T, error) {
	if len(seq) == 0 {
		return nil, nil
	}

	items := make([]CheckItem, len(seq))
	for i, v := range seq {
		items[i] = CheckItem{Path: path, Input: toInput(v)}
	}
	decisions, err := c.BatchCheck(ctx, items, nil)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", path, err)
	}

	filtered := make([]T, 0, len(seq))
	for i, d := range decisions {
		if d.Allowed() {
			filtered = append(filtered, seq[i])
		}
	}
	return filtered, nil
}
