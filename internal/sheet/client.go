package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultScriptURL is the deployed Apps Script web app backing the question bank.
const DefaultScriptURL = "https://script.google.com/macros/s/AKfycby1ak6zisZ5RatuzcV_VbHbOv66KyTHmsKTZs42IXns9qYvGzTyNjg-mx3r0ROkEVszbw/exec"

const (
	ActionGetMapelData     = "getMapelData"
	ActionGetQuestions     = "getQuestions"
	ActionGetExamResults   = "getExamResults"
	ActionGetFromDataSiswa = "getFromDataSiswa"

	ActionAddToSheet         = "addToSheet"
	ActionReplaceQuestions   = "replaceQuestions"
	ActionEditQuestion       = "editQuestion"
	ActionDeleteQuestion     = "deleteQuestion"
	ActionAddToDataSiswa     = "addToDataSiswa"
	ActionEditStudent        = "editStudent"
	ActionDeleteStudent      = "deleteStudent"
	ActionDeleteAllStudents  = "deleteAllStudents"
	ActionAddMapelData       = "addMapelData"
	ActionEditMapelData      = "editMapelData"
	ActionDeleteMapelData    = "deleteMapelData"
	ActionDeleteAllQuestions = "deleteAllQuestions"
	ActionDeleteExamResult   = "deleteExamResult"
)

var (
	ErrNetworkFailure          = errors.New("network failure")
	ErrUnexpectedResponseShape = errors.New("unexpected response shape")
)

const maxResponseBytes = 8 << 20

// Call describes one finished request to the script endpoint.
type Call struct {
	Action  string
	Method  string
	Fields  map[string]any
	Err     error
	Elapsed time.Duration
}

type CallObserver interface {
	ObserveCall(ctx context.Context, call Call)
}

type Config struct {
	ScriptURL  string
	HTTPClient *http.Client
	Observers  []CallObserver
}

type Client struct {
	scriptURL string
	client    *http.Client
	observers []CallObserver
}

func NewClient(cfg Config) *Client {
	scriptURL := strings.TrimSpace(cfg.ScriptURL)
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		scriptURL: scriptURL,
		client:    client,
		observers: cfg.Observers,
	}
}

type envelope struct {
	Success *bool           `json:"success"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Read issues a GET for action and decodes the `data` array of a
// `{success, data, message}` envelope into out.
func (c *Client) Read(ctx context.Context, action string, params url.Values, out any) error {
	raw, err := c.get(ctx, action, params)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponseShape, action, err)
	}
	if env.Success == nil || !*env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "success flag missing or false"
		}
		return fmt.Errorf("%w: %s: %s", ErrUnexpectedResponseShape, action, msg)
	}
	return decodeArray(action, env.Data, out)
}

// ReadLenient is Read for endpoints that answer with `{status:"success", data}`,
// `{success:true, data}` or a bare JSON array.
func (c *Client) ReadLenient(ctx context.Context, action string, params url.Values, out any) error {
	raw, err := c.get(ctx, action, params)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeArray(action, trimmed, out)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponseShape, action, err)
	}
	if env.Status == "success" || (env.Success != nil && *env.Success) {
		return decodeArray(action, env.Data, out)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedResponseShape, action)
}

func decodeArray(action string, data json.RawMessage, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return fmt.Errorf("%w: %s: data is not an array", ErrUnexpectedResponseShape, action)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnexpectedResponseShape, action, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, action string, params url.Values) (raw []byte, err error) {
	start := time.Now()
	defer func() {
		c.observe(ctx, Call{Action: action, Method: http.MethodGet, Err: err, Elapsed: time.Since(start)})
	}()

	u, err := url.Parse(c.scriptURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid script url: %v", ErrNetworkFailure, err)
	}
	q := u.Query()
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetworkFailure, action, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetworkFailure, action, err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetworkFailure, action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrNetworkFailure, action, resp.StatusCode)
	}
	return raw, nil
}

// Write posts `{action, ...fields}` to the script endpoint. The response body
// is never inspected: a write is Accepted once the request completes without a
// transport-level failure.
func (c *Client) Write(ctx context.Context, action string, fields map[string]any) WriteResult {
	start := time.Now()
	res := c.write(ctx, action, fields)
	c.observe(ctx, Call{Action: action, Method: http.MethodPost, Fields: fields, Err: res.Err, Elapsed: time.Since(start)})
	return res
}

func (c *Client) write(ctx context.Context, action string, fields map[string]any) WriteResult {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["action"] = action

	body, err := json.Marshal(payload)
	if err != nil {
		return transportFailed(action, fmt.Errorf("encode %s: %w", action, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scriptURL, bytes.NewReader(body))
	if err != nil {
		return transportFailed(action, fmt.Errorf("%w: %s: %v", ErrNetworkFailure, action, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transportFailed(action, fmt.Errorf("%w: %s: %v", ErrNetworkFailure, action, err))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	if resp.StatusCode >= 400 {
		return transportFailed(action, fmt.Errorf("%w: %s: status %d", ErrNetworkFailure, action, resp.StatusCode))
	}
	return WriteResult{Action: action, Status: WriteAccepted}
}

func (c *Client) observe(ctx context.Context, call Call) {
	for _, o := range c.observers {
		o.ObserveCall(ctx, call)
	}
}
