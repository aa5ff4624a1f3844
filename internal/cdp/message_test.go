package cdp

import "testing"

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantID     int64
		wantMethod string
		wantBody   string
		wantErr    bool
	}{
		{
			name:     "response",
			input:    `{"id":1,"result":{"frameId":"ABC123"}}`,
			wantID:   1,
			wantBody: `{"frameId":"ABC123"}`,
		},
		{
			name:     "response with null result",
			input:    `{"id":42,"result":null}`,
			wantID:   42,
			wantBody: `null`,
		},
		{
			name:       "event",
			input:      `{"method":"Page.loadEventFired","params":{"timestamp":123.456}}`,
			wantMethod: "Page.loadEventFired",
			wantBody:   `{"timestamp":123.456}`,
		},
		{
			name:    "neither id nor method",
			input:   `{"foo":"bar"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			input:   `{"id":}`,
			wantErr: true,
		},
		{
			name:    "empty",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, evt, err := parseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if tt.wantID != 0 {
				if resp == nil || evt != nil {
					t.Fatalf("expected response only, got resp=%v evt=%v", resp, evt)
				}
				if resp.ID != tt.wantID {
					t.Errorf("expected ID %d, got %d", tt.wantID, resp.ID)
				}
				if string(resp.Result) != tt.wantBody {
					t.Errorf("expected result %s, got %s", tt.wantBody, resp.Result)
				}
				return
			}

			if evt == nil || resp != nil {
				t.Fatalf("expected event only, got resp=%v evt=%v", resp, evt)
			}
			if evt.Method != tt.wantMethod {
				t.Errorf("expected method %s, got %s", tt.wantMethod, evt.Method)
			}
			if string(evt.Params) != tt.wantBody {
				t.Errorf("expected params %s, got %s", tt.wantBody, evt.Params)
			}
		})
	}
}

func TestParseMessage_ResponseWithError(t *testing.T) {
	t.Parallel()

	resp, _, err := parseMessage([]byte(`{"id":7,"error":{"code":-32000,"message":"Could not find node with given id","data":"objectId"}}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected error in response")
	}
	if got := resp.Error.Error(); got != "cdp error -32000: Could not find node with given id (objectId)" {
		t.Errorf("unexpected error string: %s", got)
	}
}

func TestError_ErrorWithoutData(t *testing.T) {
	t.Parallel()

	e := Error{Code: -32602, Message: "Invalid params"}
	if got := e.Error(); got != "cdp error -32602: Invalid params" {
		t.Errorf("unexpected error string: %s", got)
	}
}
