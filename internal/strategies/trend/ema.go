package trend

// EMASeries 计算整条 EMA 序列（与 pandas ewm(span, adjust=False) 一致）
// alpha = 2/(span+1)，以首个收盘价为种子
func EMASeries(closes []float64, span int) []float64 {
	if len(closes) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(closes))
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = alpha*closes[i] + (1-alpha)*out[i-1]
	}
	return out
}
