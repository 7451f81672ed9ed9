package domain

// Candle 一根 K 线，窗口内按时间升序排列（最旧在前）
type Candle struct {
	Ts    int64 // 开盘时间（毫秒）
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Closes 提取收盘价序列（与窗口同序：最旧在前）
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
