package cli

import (
	"net/http"
	"time"

	"github.com/dnslin/sessionretry/core/logger"
)

// debugTransport 在调试日志中记录每次请求的状态码与耗时。
type debugTransport struct {
	base   http.RoundTripper
	logger logger.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debugf("<<< %s %s 错误: %v", req.Method, req.URL.Path, err)
		return nil, err
	}
	t.logger.Debugf("<<< %s %s %d (%s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}
