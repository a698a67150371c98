package agent

import "errors"

// 错误分类。安全拒绝不是错误：不安全的输入仍然会得到一个拒绝型结果。
var (
	// ErrValidation 请求参数不合法（如空消息），对应 HTTP 400
	ErrValidation = errors.New("validation error")

	// ErrUpstreamUnavailable 所有上游来源都不可用且没有降级结果，对应 HTTP 502
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInternalInconsistency 阶段产出了下一阶段无法消费的状态，对应 HTTP 500
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
