// server.go 包括客户端与服务端交互的底层函数

package clientlib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/restfulpayload"
	"github.com/CamberLoid/tzama/internal/types"
)

const (
	DefaultServerURL string = "http://127.0.0.1:16001"
	DefaultTimeout          = 30 * time.Second
)

// RemoteError 是服务端返回的失败响应。
// Unwrap 返回对应类别的哨兵错误，调用方可以直接 errors.Is
type RemoteError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return types.ErrorOfKind(e.Kind)
}

// Server 是服务端的 HTTP 连接
type Server struct {
	URL  string
	HTTP *http.Client
}

func NewServer(serverURL string) (*Server, error) {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, errors.Wrapf(err, "invalid server url %q", serverURL)
	}
	return &Server{URL: serverURL, HTTP: &http.Client{Timeout: DefaultTimeout}}, nil
}

// call 发送 JSON 请求，并将成功响应解码到 out
func (s *Server) call(ctx context.Context, method, endpoint string, in, out interface{}) error {
	target, err := url.JoinPath(s.URL, endpoint)
	if err != nil {
		return errors.Wrap(err, "join url")
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		var failure restfulpayload.Failure
		if json.Unmarshal(raw, &failure) != nil || failure.Err == "" {
			failure.Err = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{StatusCode: resp.StatusCode, Kind: failure.Kind, Message: failure.Err}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}
