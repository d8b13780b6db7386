// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/config"
)

// DefaultConnectTimeout applies when extra.connect_timeout is unset.
const DefaultConnectTimeout = 10 * time.Second

const userAgent = "rigchat/0.1"

// configValue resolves a secret: the explicit value, else the environment
// variable derived from the client name and field, else an error naming it.
func configValue(explicit, clientName, field string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}
	key := envName(clientName, field)
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	return "", &MissingCredentialError{Field: field, EnvVar: key}
}

// optionalValue is configValue without the failure.
func optionalValue(explicit, clientName, field string) string {
	v, _ := configValue(explicit, clientName, field)
	return v
}

// envName builds NAME_FIELD in upper case. Dashes become underscores so the
// variable can be set from a shell.
func envName(clientName, field string) string {
	return strings.ToUpper(strings.ReplaceAll(clientName+"_"+field, "-", "_"))
}

// resolveProxy returns the proxy to use, or nil for a direct connection.
func resolveProxy(extra *config.ExtraConfig) (*url.URL, error) {
	var value string
	switch {
	case extra != nil && extra.Proxy != nil:
		value = strings.TrimSpace(*extra.Proxy)
		if value == "" || value == "false" || value == "-" {
			return nil, nil
		}
	case os.Getenv("HTTPS_PROXY") != "":
		value = os.Getenv("HTTPS_PROXY")
	case os.Getenv("ALL_PROXY") != "":
		value = os.Getenv("ALL_PROXY")
	default:
		return nil, nil
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, &InvalidProxyError{Proxy: value, Err: err}
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, &InvalidProxyError{Proxy: value}
	}
	if u.Host == "" {
		return nil, &InvalidProxyError{Proxy: value}
	}
	return u, nil
}

// connectTimeout returns the configured or default connect timeout.
func connectTimeout(extra *config.ExtraConfig) time.Duration {
	if t := extra.Timeout(); t > 0 {
		return t
	}
	return DefaultConnectTimeout
}

// buildHTTPClient creates the transport for one call. The overall request is
// bounded by the caller's context, not by a client timeout, so long streams
// are not cut off.
func buildHTTPClient(extra *config.ExtraConfig) (*resty.Client, error) {
	proxy, err := resolveProxy(extra)
	if err != nil {
		return nil, err
	}
	timeout := connectTimeout(extra)

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return resty.New().
		SetTransport(transport).
		SetHeader("User-Agent", userAgent), nil
}
