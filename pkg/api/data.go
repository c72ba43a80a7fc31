package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// dataEnvelope wraps every data API response.
type dataEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// GetData reads the document at path into the given value. A document that
// does not exist decodes as the zero value when the service answers with an
// empty result.
func (c *Client) GetData(ctx context.Context, path string, into any) error {
	resp, err := c.Do(ctx, http.MethodGet, dataPath(path), nil, nil)
	if err != nil {
		return fmt.Errorf("get data %q: %w", path, err)
	}
	var envelope dataEnvelope
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("get data %q: decoding response: %w", path, err)
	}
	if into == nil || envelope.Result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, into); err != nil {
		return fmt.Errorf("get data %q: decoding result: %w", path, err)
	}
	return nil
}

// PutData writes the document at path.
func (c *Client) PutData(ctx context.Context, path string, data any) error {
	if _, err := c.Do(ctx, http.MethodPut, dataPath(path), nil, data); err != nil {
		return fmt.Errorf("put data %q: %w", path, err)
	}
	return nil
}

// DeleteData removes the document at path.
func (c *Client) DeleteData(ctx context.Context, path string) error {
	if _, err := c.Do(ctx, http.MethodDelete, dataPath(path), nil, nil); err != nil {
		return fmt.Errorf("delete data %q: %w", path, err)
	}
	return nil
}
