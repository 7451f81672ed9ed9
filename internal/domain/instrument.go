package domain

import "github.com/shopspring/decimal"

// Instrument 合约元数据，启动时从交易所加载，加载后不可变
type Instrument struct {
	InstID   string          // 合约 ID，例如 BTC-USDT-SWAP
	InstType string          // SWAP / FUTURES / ...
	TickSize decimal.Decimal // 最小价格增量
	CtVal    decimal.Decimal // 合约面值
}

// TickDecimals 返回 tick size 自身的有效小数位数
// 挂单价格的小数位数必须与之一致
func (i Instrument) TickDecimals() int32 {
	exp := i.TickSize.Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}
