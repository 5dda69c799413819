package pair

import "math"

// SpreadModel 价差信号：EMA 均值 + 滚动窗口标准差，输出 z-score 偏离。
//
//	current   = mid1 - ratio*mid2
//	avg_ori   = (1-α)*avg_ori + α*current   （仅腿1行情推进）
//	avg       = avg_ori + t_value
//	deviation = (current - avg)/std_dev     （窗口未满或 std<1e-10 时为 0）
type SpreadModel struct {
	Ratio  float64
	Alpha  float64
	AvgOri float64 // EMA，落快照
	TValue float64 // 外部 t-var 调整值

	Current float64
	Seeded  bool // 快照种子或首笔行情已初始化

	window []float64
	head   int
	count  int
}

// NewSpreadModel window 为标准差滚动窗口长度（avg_spread_away）
func NewSpreadModel(ratio, alpha float64, window int) *SpreadModel {
	if window <= 0 {
		window = 20
	}
	if ratio == 0 {
		ratio = 1
	}
	return &SpreadModel{
		Ratio:  ratio,
		Alpha:  alpha,
		window: make([]float64, window),
	}
}

// Seed 用快照里的 EMA 种子初始化
func (m *SpreadModel) Seed(avgOri float64) {
	m.AvgOri = avgOri
	m.Seeded = true
}

// SetTValue 每 tick 读一次 t-var
func (m *SpreadModel) SetTValue(v float64) {
	m.TValue = v
}

// Update 推进价差。isLeg1 为真时推进 EMA 并压入窗口样本，
// 腿2行情只刷新 current。
func (m *SpreadModel) Update(mid1, mid2 float64, isLeg1 bool) {
	m.Current = mid1 - m.Ratio*mid2

	if !m.Seeded {
		m.AvgOri = m.Current
		m.Seeded = true
	}

	if !isLeg1 {
		return
	}

	if m.Alpha > 0 {
		m.AvgOri = (1-m.Alpha)*m.AvgOri + m.Alpha*m.Current
	}

	m.window[m.head] = m.Current
	m.head = (m.head + 1) % len(m.window)
	if m.count < len(m.window) {
		m.count++
	}
}

// Avg 调整后均值
func (m *SpreadModel) Avg() float64 {
	return m.AvgOri + m.TValue
}

// Warm 窗口是否已满
func (m *SpreadModel) Warm() bool {
	return m.count == len(m.window)
}

// StdDev 窗口样本的标准差。未满返回 0。
func (m *SpreadModel) StdDev() float64 {
	if !m.Warm() {
		return 0
	}
	n := float64(m.count)
	mean := 0.0
	for _, v := range m.window[:m.count] {
		mean += v
	}
	mean /= n

	var ss float64
	for _, v := range m.window[:m.count] {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / n)
}

// Deviation z-score 偏离。窗口未满或标准差退化时为 0。
func (m *SpreadModel) Deviation() float64 {
	sd := m.StdDev()
	if sd < 1e-10 {
		return 0
	}
	return (m.Current - m.Avg()) / sd
}
