package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
)

type itemsResponse struct {
	Items []string
}

func TestDoSuccess(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"items":["p1","p2"]}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/success", nil)
	var rsp itemsResponse
	if err := client.Do(req, &rsp); err != nil {
		t.Fatalf("预期成功，得到错误: %v", err)
	}
	if len(rsp.Items) != 2 || rsp.Items[0] != "p1" {
		t.Fatalf("响应解析错误: %+v", rsp)
	}
}

func TestClientErrorNoRetry(t *testing.T) {
	var attempt atomic.Int32
	client := NewClient(
		WithRetryPolicy(NewExponentialBackoffRetry(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond})),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			attempt.Add(1)
			return jsonResponse(http.StatusBadRequest, `{"code":"BAD_REQUEST","message":"failed"}`), nil
		})}),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/business", nil)
	err := client.Do(req, &itemsResponse{})
	var ec *ErrCode
	if !errors.As(err, &ec) {
		t.Fatalf("错误类型应为 ErrCode，实际: %v", err)
	}
	if ec.Code != "BAD_REQUEST" || ec.Message != "failed" || ec.Status != http.StatusBadRequest {
		t.Fatalf("错误体解析不符合预期: %+v", ec)
	}
	if authretry.KindOf(err) != authretry.KindOther {
		t.Fatalf("普通 4xx 不应视为会话过期")
	}
	if attempt.Load() != 1 {
		t.Fatalf("4xx 不应重试，实际请求 %d 次", attempt.Load())
	}
}

func TestClientErrorWithoutBodyUsesStatus(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusNotFound, `not json`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/missing", nil)
	err := client.Do(req, &itemsResponse{})
	var ec *ErrCode
	if !errors.As(err, &ec) || ec.Code != "HTTP_404" || ec.Status != http.StatusNotFound {
		t.Fatalf("无法解码的 4xx 应按状态码生成 ErrCode，实际: %v", err)
	}
}

func TestUnauthorizedMapsToSessionExpired(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"code":"TOKEN_EXPIRED","message":"expired"}`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/auth", nil)
	err := client.Do(req, &itemsResponse{})
	if !errors.Is(err, authretry.ErrSessionExpired) {
		t.Fatalf("401 应映射为会话过期，实际: %v", err)
	}
	var ec *ErrCode
	if !errors.As(err, &ec) || ec.Status != http.StatusUnauthorized || ec.Code != "TOKEN_EXPIRED" {
		t.Fatalf("应保留原始 ErrCode，实际: %+v", ec)
	}
}

func TestAuthCodeInErrorBody(t *testing.T) {
	forbidden := func(code string) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusForbidden, `{"code":"`+code+`","message":"expired"}`), nil
		})
	}
	req, _ := http.NewRequest(http.MethodGet, "http://mock/auth", nil)

	client := NewClient(WithHTTPClient(&http.Client{Transport: forbidden("TOKEN_EXPIRED")}))
	if err := client.Do(req, &itemsResponse{}); authretry.KindOf(err) != authretry.KindSessionExpired {
		t.Fatalf("默认认证错误码应视为会话过期，实际: %v", err)
	}

	client = NewClient(WithAuthCodes("LOGIN_REQUIRED"), WithHTTPClient(&http.Client{Transport: forbidden("LOGIN_REQUIRED")}))
	if err := client.Do(req, &itemsResponse{}); authretry.KindOf(err) != authretry.KindSessionExpired {
		t.Fatalf("配置的认证错误码应视为会话过期，实际: %v", err)
	}

	client = NewClient(WithAuthCodes("LOGIN_REQUIRED"), WithHTTPClient(&http.Client{Transport: forbidden("TOKEN_EXPIRED")}))
	if err := client.Do(req, &itemsResponse{}); authretry.KindOf(err) != authretry.KindOther {
		t.Fatalf("WithAuthCodes 应替换默认错误码，实际: %v", err)
	}
}

func TestSessionRefreshRetriesOnce(t *testing.T) {
	var attempt atomic.Int32
	refreshCalled := 0
	token := "old"
	inv := authretry.NewInvoker(authretry.Sync(func(context.Context) error {
		refreshCalled++
		token = "new"
		return nil
	}))
	client := NewClient(
		WithSessionRefresh(inv),
		WithMiddlewares(func(req *http.Request) error {
			req.Header.Set("Authorization", "Bearer "+token)
			return nil
		}),
		WithHTTPClient(&http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				attempt.Add(1)
				body, _ := io.ReadAll(req.Body)
				if string(body) != "payload" {
					t.Fatalf("重发时请求体丢失: %q", body)
				}
				if req.Header.Get("Authorization") != "Bearer new" {
					return jsonResponse(http.StatusUnauthorized, `{"code":"SESSION_EXPIRED"}`), nil
				}
				return jsonResponse(http.StatusOK, `{"items":["ok"]}`), nil
			}),
		}),
	)
	req, _ := http.NewRequest(http.MethodPost, "http://mock/auth", bytes.NewBufferString("payload"))
	var rsp itemsResponse
	if err := client.Do(req, &rsp); err != nil {
		t.Fatalf("刷新后应重试成功: %v", err)
	}
	if refreshCalled != 1 {
		t.Fatalf("刷新调用次数不正确，得到 %d", refreshCalled)
	}
	if attempt.Load() != 2 {
		t.Fatalf("请求次数不正确，得到 %d", attempt.Load())
	}
}

func TestSessionRefreshGivesUpAfterSecondExpiry(t *testing.T) {
	var attempt atomic.Int32
	refreshCalled := 0
	inv := authretry.NewInvoker(authretry.Sync(func(context.Context) error {
		refreshCalled++
		return nil
	}))
	client := NewClient(
		WithSessionRefresh(inv),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			attempt.Add(1)
			return jsonResponse(http.StatusUnauthorized, `{"code":"SESSION_EXPIRED"}`), nil
		})}),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/auth", nil)
	err := client.Do(req, &itemsResponse{})
	if !errors.Is(err, authretry.ErrSessionExpired) {
		t.Fatalf("第二次过期应原样返回，实际: %v", err)
	}
	if refreshCalled != 1 || attempt.Load() != 2 {
		t.Fatalf("应刷新 1 次、请求 2 次，实际刷新 %d 次、请求 %d 次", refreshCalled, attempt.Load())
	}
}

func TestNetworkRetry(t *testing.T) {
	transport := &flakyTransport{
		failures: 1,
		inner: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"items":["ok"]}`), nil
		}),
	}
	policy := NewExponentialBackoffRetry(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
	client := NewClient(
		WithHTTPClient(&http.Client{Transport: transport}),
		WithRetryPolicy(policy),
	)
	req, _ := http.NewRequest(http.MethodGet, "http://mock/network", nil)
	var rsp itemsResponse
	if err := client.Do(req, &rsp); err != nil {
		t.Fatalf("网络错误后应重试成功: %v", err)
	}
	if transport.attempts != 2 {
		t.Fatalf("应尝试 2 次，实际 %d", transport.attempts)
	}
}

func TestRetryWaitHonorsContext(t *testing.T) {
	policy := NewExponentialBackoffRetry(RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   time.Second,
	})
	client := NewClient(
		WithRetryPolicy(policy),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusServiceUnavailable, ``), nil
		})}),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://mock/slow", nil)
	start := time.Now()
	err := client.Do(req, &itemsResponse{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("退避等待应随 ctx 结束，实际: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("退避未及时中断: %v", time.Since(start))
	}
}

func TestDecodeError(t *testing.T) {
	client := NewClient(WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `invalid json`), nil
		}),
	}))
	req, _ := http.NewRequest(http.MethodGet, "http://mock/decode", nil)
	var rsp itemsResponse
	err := client.Do(req, &rsp)
	if err == nil {
		t.Fatal("预期解码失败错误")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("错误类型应为 DecodeError，实际: %v", err)
	}
}

func TestBodyWithoutGetBodyCannotRetry(t *testing.T) {
	policy := NewExponentialBackoffRetry(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  1 * time.Millisecond,
		MaxDelay:   1 * time.Millisecond,
	})
	client := NewClient(
		WithRetryPolicy(policy),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, ``), nil
		})}),
	)

	req, _ := http.NewRequest(http.MethodPost, "http://mock/body", bytes.NewBufferString("data"))
	req.GetBody = nil // 模拟无法重试的场景
	err := client.Do(req, &itemsResponse{})
	if err == nil {
		t.Fatal("预期因无法重试请求体而失败")
	}
	if err.Error() != "httpclient: 请求体不可重试" {
		t.Fatalf("错误信息不符合预期: %v", err)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var ids []string
	client := NewClient(
		WithMiddlewares(WithRequestID(), WithUserAgent("feedctl")),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			ids = append(ids, req.Header.Get("X-Request-ID"))
			if req.Header.Get("User-Agent") != "feedctl" {
				t.Fatalf("UA 未设置")
			}
			return jsonResponse(http.StatusOK, `{}`), nil
		})}),
	)
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, "http://mock/id", nil)
		if err := client.Do(req, nil); err != nil {
			t.Fatalf("请求失败: %v", err)
		}
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Fatalf("每次请求应生成不同的 X-Request-ID: %v", ids)
	}
}

type flakyTransport struct {
	failures int
	inner    http.RoundTripper
	attempts int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("模拟网络失败")
	}
	return f.inner.RoundTrip(req)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/json")
	rec.WriteHeader(status)
	rec.Body.WriteString(body)
	return rec.Result()
}
