package auth

import (
	"net/http"

	"github.com/dnslin/sessionretry/core/httpclient"
)

// BearerMiddleware 在每次发送前读取最新 access token 写入 Authorization。
// token 为空时不设置请求头，由服务端返回 401 触发刷新。
func BearerMiddleware(p SessionProvider) httpclient.Middleware {
	return func(req *http.Request) error {
		if p == nil {
			return nil
		}
		token := p.GetAccessToken()
		if token == "" {
			req.Header.Del("Authorization")
			return nil
		}
		req.Header.Set("Authorization", p.GetTokenType()+" "+token)
		return nil
	}
}
