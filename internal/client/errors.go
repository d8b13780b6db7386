// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common provider failures.
var (
	// ErrAuthFailed indicates the provider rejected the credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrUnknownModel indicates a model id that matches no configured client.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoClients indicates that no usable client is configured.
	ErrNoClients = errors.New("no clients configured")
)

// NoSuchClientError reports a model selection that no registered provider
// can serve.
type NoSuchClientError struct {
	Client string
	Index  int
}

func (e *NoSuchClientError) Error() string {
	return fmt.Sprintf("unknown client %s at config.clients[%d]", e.Client, e.Index)
}

// MissingCredentialError reports a required secret found in neither the
// configuration nor the environment.
type MissingCredentialError struct {
	Field  string
	EnvVar string
}

func (e *MissingCredentialError) Error() string {
	if e.EnvVar == "" {
		return fmt.Sprintf("missing %s", e.Field)
	}
	return fmt.Sprintf("missing %s (set it in the config or via %s)", e.Field, e.EnvVar)
}

// InvalidProxyError reports a proxy value that is not a usable URL.
type InvalidProxyError struct {
	Proxy string
	Err   error
}

func (e *InvalidProxyError) Error() string {
	return fmt.Sprintf("invalid proxy `%s`", e.Proxy)
}

func (e *InvalidProxyError) Unwrap() error {
	return e.Err
}

// APIError represents an error returned by a provider API.
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string

	kind error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the matching sentinel error, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 * 1024

// errorFromBody builds an APIError from a failed response. It understands the
// OpenAI and Anthropic {"error": {...}} shapes and Ollama's {"error": "..."}.
func errorFromBody(provider string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	apiErr := &APIError{Provider: provider, Status: status}
	apiErr.Code, apiErr.Message = parseErrorPayload(body)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.kind = ErrAuthFailed
	case http.StatusPaymentRequired:
		apiErr.kind = ErrInsufficientCredits
	case http.StatusNotFound:
		apiErr.kind = ErrModelNotFound
	case http.StatusTooManyRequests:
		apiErr.kind = ErrRateLimited
	}
	return apiErr
}

func parseErrorPayload(body []byte) (code, message string) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return "", ""
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return "", text
	}

	var detail struct {
		Code    any    `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err != nil {
		return "", ""
	}
	code = detail.Type
	if detail.Code != nil {
		code = fmt.Sprint(detail.Code)
	}
	return code, detail.Message
}
