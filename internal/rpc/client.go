/*
 * Copyright (c) 2024, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rpc implements the JSON-RPC 2.0 client used to query vhostd.
//
// vhostd writes responses without a length prefix or delimiter, so the end
// of a response is detected heuristically: the client waits up to the
// response timeout for the first bytes, then keeps reading until no more
// data arrives within the drain timeout. The first complete JSON value in the
// collected bytes is the response; anything after it is discarded. This is
// best effort. A response that stalls for longer than the drain timeout
// mid-message is truncated and surfaces as ErrNoResponse.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultAddress is the address vhostd listens on.
	DefaultAddress = "localhost"
	// DefaultPort is the port vhostd listens on.
	DefaultPort = 12190
	// DefaultResponseTimeout bounds the wait for the first byte of a response.
	DefaultResponseTimeout = 100 * time.Second
	// DefaultDrainTimeout is the idle period that ends a response.
	DefaultDrainTimeout = 200 * time.Millisecond

	jsonRPCVersion = "2.0"
	readChunkSize  = 4096
)

var (
	// ErrConnect is returned when vhostd cannot be reached.
	ErrConnect = errors.New("can't connect to vhostd")
	// ErrResponseTimeout is returned when vhostd sends nothing within the response timeout.
	ErrResponseTimeout = errors.New("vhostd response timeout")
	// ErrNoResponse is returned when the bytes read from vhostd do not decode to a response.
	ErrNoResponse = errors.New("no usable response from vhostd")
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object returned by vhostd.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("vhostd error %d: %s", e.Code, e.Message)
}

// Client is a connection to vhostd. It is not safe for concurrent use:
// every call writes one request and waits for its response.
type Client struct {
	conn            net.Conn
	requestID       int
	responseTimeout time.Duration
	drainTimeout    time.Duration
	log             *logrus.Logger
}

// Option defines a function for passing options to Dial() and NewClient().
type Option func(*Client)

// WithResponseTimeout sets how long to wait for the first byte of a response.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.responseTimeout = timeout
	}
}

// WithDrainTimeout sets the idle period that ends a response.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.drainTimeout = timeout
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Dial connects to vhostd at address:port.
func Dial(address string, port int, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w at %s:%d: %v", ErrConnect, address, port, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection to vhostd.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:            conn,
		responseTimeout: DefaultResponseTimeout,
		drainTimeout:    DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Close closes the connection to vhostd.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends a request for 'method' and returns the decoded response.
// A nil 'params' is omitted from the request. A JSON-RPC error reply is
// returned as an *Error. A reply that cannot be decoded is retried once
// with a fresh request before ErrNoResponse is returned.
func (c *Client) Call(method string, params any) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		id, err := c.send(method, params)
		if err != nil {
			return nil, err
		}

		rsp, err := c.recv()
		if err == nil && rsp.ID != nil && *rsp.ID != id {
			err = fmt.Errorf("%w: response id %d does not match request id %d", ErrNoResponse, *rsp.ID, id)
		}
		if errors.Is(err, ErrNoResponse) {
			c.log.Debugf("Discarding response to %q (id=%d): %v", method, id, err)
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		if rsp.Error != nil {
			return nil, rsp.Error
		}
		return rsp, nil
	}
	return nil, lastErr
}

func (c *Client) send(method string, params any) (int, error) {
	c.requestID++
	req := Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		ID:      c.requestID,
		Params:  params,
	}

	b, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("unable to encode %q request: %v", method, err)
	}

	c.log.Debugf("vhostd request: %s", b)
	if _, err := c.conn.Write(b); err != nil {
		return 0, fmt.Errorf("unable to send %q request to vhostd: %w", method, err)
	}
	return req.ID, nil
}

func (c *Client) recv() (*Response, error) {
	var data bytes.Buffer
	chunk := make([]byte, readChunkSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.responseTimeout)); err != nil {
		return nil, fmt.Errorf("unable to set read deadline: %v", err)
	}
	n, err := c.conn.Read(chunk)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrResponseTimeout
		}
		return nil, fmt.Errorf("unable to read from vhostd: %w", err)
	}
	data.Write(chunk[:n])

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.drainTimeout)); err != nil {
			return nil, fmt.Errorf("unable to set read deadline: %v", err)
		}
		n, err := c.conn.Read(chunk)
		data.Write(chunk[:n])
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) {
			break
		}
		return nil, fmt.Errorf("unable to read from vhostd: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("unable to clear read deadline: %v", err)
	}

	c.log.Debugf("vhostd response: %s", data.Bytes())
	return decodeResponse(data.Bytes())
}

// decodeResponse decodes the first JSON value in 'b' and ignores anything after it.
func decodeResponse(b []byte) (*Response, error) {
	var rsp Response
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&rsp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	return &rsp, nil
}
