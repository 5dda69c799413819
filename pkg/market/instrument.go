package market

import (
	"math"

	"pairarb-go/pkg/shm"
)

// BookDepth 行情簿深度，与网关 wire 格式一致
const BookDepth = shm.BookLevels

// Instrument 单合约静态属性 + 最新行情簿
type Instrument struct {
	Symbol       string // e.g. "ag2603"
	OrigBaseName string // 控制文件里的原始名 (e.g. "ag_F_3_SFE")
	Exchange     string
	Product      string

	TickSize   float64
	LotSize    float64
	Multiplier float64 // 合约乘数
	SendInLots bool    // 下单数量按手报还是按张报
	Token      int32
	ExpiryDate int32

	// 按成交金额比例 + 按手固定的费率
	CostRate float64
	CostFlat float64

	// 5 档行情簿
	BidPx     [BookDepth]float64
	BidQty    [BookDepth]float64
	BidOrders [BookDepth]int32
	AskPx     [BookDepth]float64
	AskQty    [BookDepth]float64
	AskOrders [BookDepth]int32

	ValidBids int32
	ValidAsks int32

	LastTradePx  float64
	LastTradeQty float64
	Volume       uint64
	Turnover     float64

	ExchTimestamp  uint64
	LocalTimestamp uint64
}

// UpdateFromMD 从队列记录刷新行情簿
func (inst *Instrument) UpdateFromMD(md *shm.MarketUpdate) {
	data := &md.Data

	inst.ValidBids = int32(data.ValidBids)
	inst.ValidAsks = int32(data.ValidAsks)

	for i := 0; i < BookDepth; i++ {
		inst.BidPx[i] = data.Bids[i].Price
		inst.BidQty[i] = float64(data.Bids[i].Qty)
		inst.BidOrders[i] = int32(data.Bids[i].Orders)
		inst.AskPx[i] = data.Asks[i].Price
		inst.AskQty[i] = float64(data.Asks[i].Qty)
		inst.AskOrders[i] = int32(data.Asks[i].Orders)
	}

	inst.LastTradePx = data.LastTradePrice
	inst.LastTradeQty = float64(data.LastTradeQty)
	inst.Volume = data.Volume
	inst.Turnover = data.Turnover
	inst.ExchTimestamp = md.Header.ExchTimestamp
	inst.LocalTimestamp = md.Header.LocalTimestamp
}

// HasValidBook 买一卖一都有价才算有效
func (inst *Instrument) HasValidBook() bool {
	return inst.ValidBids > 0 && inst.ValidAsks > 0 &&
		inst.BidPx[0] > 0 && inst.AskPx[0] > 0
}

// MidPrice 中间价
func (inst *Instrument) MidPrice() float64 {
	return (inst.BidPx[0] + inst.AskPx[0]) / 2.0
}

// MSWPrice 市场量加权价
func (inst *Instrument) MSWPrice() float64 {
	totalQty := inst.AskQty[0] + inst.BidQty[0]
	if totalQty == 0 {
		return inst.MidPrice()
	}
	return (inst.AskQty[0]*inst.BidPx[0] + inst.BidQty[0]*inst.AskPx[0]) / totalQty
}

// Spread 买卖价差
func (inst *Instrument) Spread() float64 {
	return inst.AskPx[0] - inst.BidPx[0]
}

// RoundToTick 把价格对齐到最近的 tick
func (inst *Instrument) RoundToTick(px float64) float64 {
	if inst.TickSize <= 0 {
		return px
	}
	return math.Round(px/inst.TickSize) * inst.TickSize
}

// ImproveBid 隐形簿改善价：买一到卖一之间空出超过一个 tick 时，
// 可以在 bid+tick 插队；否则返回买一。
func (inst *Instrument) ImproveBid() float64 {
	if inst.AskPx[0]-inst.BidPx[0] > inst.TickSize+1e-9 {
		return inst.BidPx[0] + inst.TickSize
	}
	return inst.BidPx[0]
}

// ImproveAsk 同 ImproveBid，卖侧
func (inst *Instrument) ImproveAsk() float64 {
	if inst.AskPx[0]-inst.BidPx[0] > inst.TickSize+1e-9 {
		return inst.AskPx[0] - inst.TickSize
	}
	return inst.AskPx[0]
}

// SamePx tick 级价格相等判断
func SamePx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
