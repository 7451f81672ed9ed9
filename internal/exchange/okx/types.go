package okx

import "encoding/json"

// apiResponse OKX v5 REST 通用响应包
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (r *apiResponse) ok() bool { return r.Code == "0" }

// instrumentItem /api/v5/public/instruments 响应项（只取用到的字段）
type instrumentItem struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	TickSz   string `json:"tickSz"`
	CtVal    string `json:"ctVal"`
}

// tickerItem /api/v5/market/ticker 响应项
type tickerItem struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
}

// pendingOrderItem /api/v5/trade/orders-pending 响应项
type pendingOrderItem struct {
	OrdID string `json:"ordId"`
}

// convertItem /api/v5/public/convert-contract-coin 响应项
type convertItem struct {
	InstID string `json:"instId"`
	Sz     string `json:"sz"`
}

// orderResultItem 下单/撤单响应项（sCode/sMsg 为逐单结果）
type orderResultItem struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}
