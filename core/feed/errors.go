package feed

import (
	"errors"
	"fmt"

	coreerrors "github.com/dnslin/sessionretry/core/errors"
	"github.com/dnslin/sessionretry/core/httpclient"
)

var (
	// ErrEmptyID 在 userID 或 commentID 为空时返回。
	ErrEmptyID = coreerrors.New(coreerrors.ErrCodeInvalidArgument, "feed: ID 不能为空")
	// ErrClientNil 在客户端未初始化时返回。
	ErrClientNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "feed: Client 未初始化")
)

// Error 记录失败的接口与 HTTP 状态，底层错误保留在 Unwrap 链上，
// 会话过期仍可被 authretry.KindOf 识别。
type Error struct {
	Op         string
	HTTPStatus int
	Raw        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("feed: %s 失败(status=%d): %v", e.Op, e.HTTPStatus, e.Raw)
	}
	return fmt.Sprintf("feed: %s 失败: %v", e.Op, e.Raw)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Raw
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, HTTPStatus: httpStatusFromErr(err), Raw: err}
}

func httpStatusFromErr(err error) int {
	var ec *httpclient.ErrCode
	if errors.As(err, &ec) && ec.Status > 0 {
		return ec.Status
	}
	return 0
}
