package cdp

import (
	"encoding/json"
	"fmt"
)

// Request is an outgoing CDP command.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the reply to a command, matched by ID.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Event is a notification pushed by the browser.
type Event struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Error is a protocol-level error returned for a command.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// frame is the union of response and event fields.
type frame struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// parseMessage decodes a raw frame into exactly one of a Response or an Event.
func parseMessage(data []byte) (*Response, *Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse CDP message: %w", err)
	}

	if f.ID != 0 {
		return &Response{ID: f.ID, Result: f.Result, Error: f.Error}, nil, nil
	}
	if f.Method != "" {
		return nil, &Event{Method: f.Method, Params: f.Params}, nil
	}

	return nil, nil, fmt.Errorf("unknown CDP message format: %s", string(data))
}
