package httpclient

import (
	"fmt"
	"net/http"
)

// ErrCode 是 4xx/5xx 响应转成的错误。4xx 的响应体 {"code": "...", "message": "..."}
// 解码到 Code 与 Message，5xx 或无法解码时 Code 为 HTTP_<status>。
type ErrCode struct {
	Code    string
	Message string
	Status  int
}

func (e *ErrCode) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return fmt.Sprintf("httpclient: HTTP %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("httpclient: HTTP %d [%s] %s", e.Status, e.Code, e.Message)
}

// NetworkError 包装传输层错误，可按退避策略重试。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("httpclient: 网络错误: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError 表示 2xx 响应体无法解码到目标结构。
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("httpclient: 解码失败(status=%d): %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func statusToErr(status int) *ErrCode {
	return &ErrCode{
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: http.StatusText(status),
		Status:  status,
	}
}
