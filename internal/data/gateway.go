package data

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"order-service/internal/conf"
	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 3 * time.Second

// gatewayResult 下游服务统一响应
type gatewayResult struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (r *gatewayResult) ok() bool {
	return r.Code == constants.GatewayCodeSuccess
}

func newRestyClient(c *conf.Gateway_Endpoint) *resty.Client {
	timeout := c.Timeout.AsDuration()
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return resty.New().
		SetBaseURL(c.Endpoint).
		SetTimeout(timeout).
		SetRetryCount(c.RetryCount).
		SetHeader("Content-Type", "application/json")
}

// execute 发送请求并解析统一响应
// 网络错误与 5xx 返回 RemoteUnavailable；404 返回 (nil, nil)。
func execute(req *resty.Request, method, path string) (*gatewayResult, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, orderErrors.Remote(fmt.Errorf("%s %s: %w", method, path, err))
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return nil, orderErrors.Remote(fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode()))
	}

	var result gatewayResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, orderErrors.Remote(fmt.Errorf("%s %s: decode response: %w", method, path, err))
	}
	return &result, nil
}
