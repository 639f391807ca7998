package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTP — сервис HTTP-запросов.
//
// Методы возвращают ответ в виде:
//
//	{
//	    "status_code": 200,
//	    "headers": {"Content-Type": "application/json"},
//	    "body": {...}  // JSON или строка
//	}
//
// Ответ с кодом >= 400 возвращается как *HTTPError, чтобы сработал onFail.
type HTTP struct {
	client             *http.Client
	noRedirect         *http.Client
	insecure           *http.Client
	insecureNoRedirect *http.Client
}

// NewHTTP создаёт сервис; client == nil — клиент с таймаутом 30s.
// Клиенты без проверки TLS и без редиректов строятся один раз из client.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	insecure := insecureTransport(client.Transport)
	return &HTTP{
		client:             client,
		noRedirect:         derivedClient(client, client.Transport, false),
		insecure:           derivedClient(client, insecure, true),
		insecureNoRedirect: derivedClient(client, insecure, false),
	}
}

func derivedClient(base *http.Client, transport http.RoundTripper, follow bool) *http.Client {
	client := &http.Client{
		Transport:     transport,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
	if !follow {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// insecureTransport копирует транспорт клиента с отключённой проверкой сертификата.
func insecureTransport(rt http.RoundTripper) *http.Transport {
	base, ok := rt.(*http.Transport)
	if !ok {
		base = http.DefaultTransport.(*http.Transport)
	}
	t := base.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	}
	t.TLSClientConfig.InsecureSkipVerify = true
	return t
}

// Get: get(url, headers?).
func (s *HTTP) Get(ctx context.Context, args ...any) (any, error) {
	url, err := stringArg("http.get", args, 0)
	if err != nil {
		return nil, err
	}
	headers, err := mapArg("http.get", args, 1)
	if err != nil {
		return nil, err
	}
	return s.Request(ctx, map[string]any{"method": http.MethodGet, "url": url, "headers": headers})
}

// Post: post(url, body, headers?).
func (s *HTTP) Post(ctx context.Context, args ...any) (any, error) {
	url, err := stringArg("http.post", args, 0)
	if err != nil {
		return nil, err
	}
	headers, err := mapArg("http.post", args, 2)
	if err != nil {
		return nil, err
	}
	return s.Request(ctx, map[string]any{
		"method":  http.MethodPost,
		"url":     url,
		"body":    arg(args, 1),
		"headers": headers,
	})
}

// Request: request(config).
//
// Конфигурация:
//
//	{
//	    "method": "PUT",
//	    "url": "https://api.example.com/users/1",
//	    "headers": {"Authorization": "Bearer •{ctx.token}"},
//	    "body": {"name": "ann"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 10
//	}
func (s *HTTP) Request(ctx context.Context, args ...any) (any, error) {
	config, err := mapArg("http.request", args, 0)
	if err != nil {
		return nil, err
	}

	cfg, err := parseHTTPConfig(config)
	if err != nil {
		return nil, err
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	req, err := cfg.request(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.clientFor(cfg).Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s %s: %w", cfg.method, cfg.url, err)
	}
	defer resp.Body.Close()

	out, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Response: out}
	}
	return out, nil
}

type httpConfig struct {
	method          string
	url             string
	headers         map[string]string
	body            any
	followRedirects bool
	validateSSL     bool
	timeout         time.Duration
}

func parseHTTPConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		method:          strings.ToUpper(configString(config, "method")),
		url:             configString(config, "url"),
		headers:         configStrings(config, "headers"),
		body:            config["body"],
		followRedirects: configBool(config, "follow_redirects", true),
		validateSSL:     configBool(config, "validate_ssl", true),
	}

	if cfg.url == "" {
		return nil, fmt.Errorf("%w: http.request: url is required", ErrInvalidArgs)
	}
	if cfg.method == "" {
		cfg.method = http.MethodGet
	}
	if cfg.headers == nil {
		cfg.headers = make(map[string]string)
	}
	if d, ok := seconds(config["timeout_sec"]); ok && d > 0 {
		cfg.timeout = d
	}

	return cfg, nil
}

func (c *httpConfig) request(ctx context.Context) (*http.Request, error) {
	var body io.Reader

	if c.body != nil {
		data, err := encodeBody(c.body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		body = bytes.NewReader(data)

		if _, ok := c.headers["Content-Type"]; !ok {
			c.headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// clientFor выбирает один из клиентов сервиса по validate_ssl и follow_redirects.
func (s *HTTP) clientFor(cfg *httpConfig) *http.Client {
	switch {
	case cfg.validateSSL && cfg.followRedirects:
		return s.client
	case cfg.validateSSL:
		return s.noRedirect
	case cfg.followRedirects:
		return s.insecure
	default:
		return s.insecureNoRedirect
	}
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func parseResponse(resp *http.Response) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any = string(data)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(data, &parsed); err == nil {
			body = parsed
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}
