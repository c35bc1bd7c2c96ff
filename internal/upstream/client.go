/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

var upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_upstream_requests_total",
	Help: "Upstream API requests, labeled by host and outcome",
}, []string{"host", "outcome"})

// Sentinel errors classifying upstream API failures. Callers match with
// errors.Is; only ErrRateLimited warrants a retry with backoff.
var (
	ErrNetwork             = errors.New("upstream network failure")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUpstreamFormat      = errors.New("unexpected upstream response format")
)

// Responses larger than this are treated as malformed.
const maxResponseBytes = 1 << 20

// NewHttpClient builds the tuned HTTP client shared by the API clients.
// A timed-out call surfaces as ErrNetwork through the Fetcher.
func NewHttpClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("unable to configure http2 transport: %w", err)
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// Fetcher performs single-round-trip JSON GET requests with the shared error
// taxonomy. No caching, no retries.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// GetJSON fetches url and decodes the body into target. Numbers are decoded
// as json.Number so decimal values survive without float rounding.
func (f *Fetcher) GetJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("unable to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(req.URL.Host, "network_error").Inc()
		return fmt.Errorf("request to %s failed: %w: %v", url, ErrNetwork, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		upstreamRequests.WithLabelValues(req.URL.Host, "network_error").Inc()
		return fmt.Errorf("reading response from %s: %w: %v", url, ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		upstreamRequests.WithLabelValues(req.URL.Host, "rate_limited").Inc()
		return fmt.Errorf("%s returned 429: %w", url, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		upstreamRequests.WithLabelValues(req.URL.Host, "http_error").Inc()
		return fmt.Errorf("%s returned status %d: %w", url, resp.StatusCode, ErrNetwork)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		upstreamRequests.WithLabelValues(req.URL.Host, "format_error").Inc()
		zap.L().Error("Undecodable upstream response",
			zap.String("url", url),
			zap.ByteString("payload", truncate(body, 512)),
			zap.Error(err))
		return fmt.Errorf("decoding response from %s: %w", url, ErrUpstreamFormat)
	}

	upstreamRequests.WithLabelValues(req.URL.Host, "ok").Inc()
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
