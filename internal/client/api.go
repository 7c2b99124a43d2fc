package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// NetworkError means the request never got an HTTP response
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response with the server's error text
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// InvalidJSONError is a response body that could not be decoded
type InvalidJSONError struct {
	Status int
	Body   string
}

func (e *InvalidJSONError) Error() string {
	return "Сервер вернул невалидный JSON: " + e.Body
}

// FlexID decodes an id sent either as a JSON number or a string
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*f = FlexID(n.String())
	return nil
}

// WireUser is a user as the endpoints return it
type WireUser struct {
	ID           FlexID `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	RegisteredAt string `json:"registered_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RegisterReply struct {
	Success bool      `json:"success"`
	UserID  FlexID    `json:"user_id"`
	User    *WireUser `json:"user"`
	Message string    `json:"message"`
	Error   string    `json:"error"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginReply struct {
	Success bool      `json:"success"`
	User    *WireUser `json:"user"`
	Message string    `json:"message"`
	Error   string    `json:"error"`
}

// API calls the registration and login endpoints
type API struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

// NewAPI creates a client for the endpoints under baseURL
func NewAPI(baseURL string, timeout time.Duration, log *logrus.Logger) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Register posts to register.php
func (a *API) Register(ctx context.Context, req RegisterRequest) (*RegisterReply, error) {
	var reply RegisterReply
	if err := a.post(ctx, "/register.php", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Login posts to login.php
func (a *API) Login(ctx context.Context, req LoginRequest) (*LoginReply, error) {
	var reply LoginReply
	if err := a.post(ctx, "/login.php", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (a *API) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	a.log.Debugf("POST %s -> %d: %s", path, resp.StatusCode, raw)

	if err := json.Unmarshal(raw, out); err != nil {
		return &InvalidJSONError{Status: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &envelope)
		return &HTTPError{Status: resp.StatusCode, Message: envelope.Error}
	}
	return nil
}

func (f FlexID) String() string {
	return string(f)
}

func unixMilliID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
