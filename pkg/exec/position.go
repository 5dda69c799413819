package exec

import (
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/types"
)

// Fill 一笔成交，盈亏重建只依赖成交流水
type Fill struct {
	OrderID uint32
	Side    types.Side
	Price   float64
	Qty     int64
	Hit     types.HitType
	TS      uint64
}

// PositionState 单腿持仓与盈亏。
// 净头寸拆成显式多/空两侧，平今优先（先平后开）：
// 任意时刻 Long*Short == 0，Net == Long-Short。
type PositionState struct {
	Long     int64   // 多头持仓（手）
	Short    int64   // 空头持仓
	AvgLong  float64 // 多头开仓均价
	AvgShort float64

	// 按打法分账的净头寸
	NetposPass    int64 // STANDARD/IMPROVE 成交
	NetposPassYtd int64 // 昨仓（被动）
	NetposAgg     int64 // CROSS/MATCH 成交
	NetposAggYtd  int64

	// 累计量/值（session 级）
	BuyQty    int64
	SellQty   int64
	BuyValue  float64
	SellValue float64

	// 在途
	BuyOpenQty     int64
	SellOpenQty    int64
	BuyOpenOrders  int32
	SellOpenOrders int32

	// 盈亏
	RealisedPNL   float64
	UnrealisedPNL float64
	GrossPNL      float64 // realised + unrealised
	NetPNL        float64 // gross - transTotal
	MaxPNL        float64 // 高水位
	Drawdown      float64
	TransTotal    float64 // 累计手续费

	// 计数器
	TradeCount   int32
	OrderCount   int32
	CancelCount  int32
	ConfirmCount int32
	RejectCount  int32
	ImproveCount int32
	CrossCount   int32

	// 标志
	OnStopLoss bool
	StopLossTS uint64  // 触发时刻，冷却后自动恢复
	PNLBase    float64 // 止损恢复时的基准，止损按增量亏损算

	// 上次重算 PNL 时的 BBO，行情没动就不重算
	BestBidLastPNL float64
	BestAskLastPNL float64

	LastTradePx   float64
	LastTradeTS   uint64
	LastTradeSide types.Side
}

// Net 当前净头寸
func (s *PositionState) Net() int64 {
	return s.Long - s.Short
}

// ApplyFill 先平后开记账。
// 买入先平空头，平仓差价落进 RealisedPNL；剩余量开多并摊均价。
// 卖出对称。返回本次平仓的已实现盈亏增量。
func (s *PositionState) ApplyFill(f *Fill, inst *market.Instrument) float64 {
	qty := f.Qty
	realised := 0.0

	switch f.Side {
	case types.Buy:
		s.BuyQty += qty
		s.BuyValue += f.Price * float64(qty)

		closeQty := min64(qty, s.Short)
		if closeQty > 0 {
			realised = (s.AvgShort - f.Price) * float64(closeQty) * inst.Multiplier
			s.Short -= closeQty
			if s.Short == 0 {
				s.AvgShort = 0
			}
			qty -= closeQty
		}
		if qty > 0 {
			s.AvgLong = (s.AvgLong*float64(s.Long) + f.Price*float64(qty)) / float64(s.Long+qty)
			s.Long += qty
		}

	case types.Sell:
		s.SellQty += qty
		s.SellValue += f.Price * float64(qty)

		closeQty := min64(qty, s.Long)
		if closeQty > 0 {
			realised = (f.Price - s.AvgLong) * float64(closeQty) * inst.Multiplier
			s.Long -= closeQty
			if s.Long == 0 {
				s.AvgLong = 0
			}
			qty -= closeQty
		}
		if qty > 0 {
			s.AvgShort = (s.AvgShort*float64(s.Short) + f.Price*float64(qty)) / float64(s.Short+qty)
			s.Short += qty
		}
	}

	s.RealisedPNL += realised

	// 手续费：按金额比例 + 按手固定
	s.TransTotal += f.Price*float64(f.Qty)*inst.Multiplier*inst.CostRate +
		float64(f.Qty)*inst.CostFlat

	// 分账
	factor := int64(1)
	if f.Side == types.Sell {
		factor = -1
	}
	switch {
	case f.Hit.Passive():
		s.NetposPass += factor * f.Qty
		if f.Hit == types.HitImprove {
			s.ImproveCount++
		}
	case f.Hit.Aggressive():
		s.NetposAgg += factor * f.Qty
		if f.Hit == types.HitCross {
			s.CrossCount++
		}
	}

	s.TradeCount++
	s.LastTradePx = f.Price
	s.LastTradeTS = f.TS
	s.LastTradeSide = f.Side

	s.CalculatePNL(inst)
	return realised
}

// CalculatePNL 浮盈按对手价盯市：多头对买一，空头对卖一。
func (s *PositionState) CalculatePNL(inst *market.Instrument) {
	switch {
	case s.Long > 0 && inst.BidPx[0] > 0:
		s.UnrealisedPNL = (inst.BidPx[0] - s.AvgLong) * float64(s.Long) * inst.Multiplier
	case s.Short > 0 && inst.AskPx[0] > 0:
		s.UnrealisedPNL = (s.AvgShort - inst.AskPx[0]) * float64(s.Short) * inst.Multiplier
	case s.Long == 0 && s.Short == 0:
		s.UnrealisedPNL = 0
	}

	s.GrossPNL = s.RealisedPNL + s.UnrealisedPNL
	s.NetPNL = s.GrossPNL - s.TransTotal

	if s.NetPNL > s.MaxPNL {
		s.MaxPNL = s.NetPNL
	}
	s.Drawdown = s.NetPNL - s.MaxPNL

	s.BestBidLastPNL = inst.BidPx[0]
	s.BestAskLastPNL = inst.AskPx[0]
}

// Reset 全部清零
func (s *PositionState) Reset() {
	*s = PositionState{}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
