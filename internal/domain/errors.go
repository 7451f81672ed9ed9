package domain

import "github.com/pkg/errors"

// 错误分类：调用方用 errors.Is 区分“本轮跳过”与“记录并告警”
var (
	// ErrDataUnavailable 交易所响应为空或结构异常（行情/合约元数据）
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrUnknownInstrument 合约不在注册表中
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrConversionFailed USDT 金额转合约张数被拒绝
	ErrConversionFailed = errors.New("conversion failed")
	// ErrOrderRejected 交易所拒绝下单/撤单/设置杠杆
	ErrOrderRejected = errors.New("order rejected")
)
