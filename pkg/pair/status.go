package pair

import "pairarb-go/pkg/exec"

// LegStatus 单腿状态快照，REST/推送用
type LegStatus struct {
	Symbol        string  `json:"symbol"`
	Net           int64   `json:"net"`
	NetposPass    int64   `json:"netpos_pass"`
	NetposAgg     int64   `json:"netpos_agg"`
	Long          int64   `json:"long"`
	Short         int64   `json:"short"`
	AvgLong       float64 `json:"avg_long"`
	AvgShort      float64 `json:"avg_short"`
	RealisedPNL   float64 `json:"realised_pnl"`
	UnrealisedPNL float64 `json:"unrealised_pnl"`
	NetPNL        float64 `json:"net_pnl"`
	TransTotal    float64 `json:"trans_total"`
	OpenOrders    int     `json:"open_orders"`
	TradeCount    int32   `json:"trade_count"`
	RejectCount   int32   `json:"reject_count"`
	BidPx         float64 `json:"bid_px"`
	AskPx         float64 `json:"ask_px"`
}

// OrderStatusRow 在途订单一行
type OrderStatusRow struct {
	ID      uint32  `json:"id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	OpenQty int64   `json:"open_qty"`
	Status  string  `json:"status"`
	Hit     string  `json:"hit"`
}

// Status 策略整体状态快照
type Status struct {
	StrategyID int32  `json:"strategy_id"`
	State      string `json:"state"`

	Spread    float64 `json:"spread"`
	AvgSpread float64 `json:"avg_spread"`
	TValue    float64 `json:"t_value"`
	StdDev    float64 `json:"std_dev"`
	Deviation float64 `json:"deviation"`
	Warm      bool    `json:"warm"`

	TholdBidPlace  float64 `json:"thold_bid_place"`
	TholdBidRemove float64 `json:"thold_bid_remove"`
	TholdAskPlace  float64 `json:"thold_ask_place"`
	TholdAskRemove float64 `json:"thold_ask_remove"`

	Exposure  int64 `json:"exposure"`
	AggRepeat int   `json:"agg_repeat"`

	DroppedTicks int64  `json:"dropped_ticks"`
	LastError    string `json:"last_error,omitempty"`

	Legs   [2]LegStatus     `json:"legs"`
	Orders []OrderStatusRow `json:"orders"`
}

// Snapshot 在锁内收集一份一致的状态
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		StrategyID:     c.StrategyID,
		State:          c.state.String(),
		Spread:         c.Spread.Current,
		AvgSpread:      c.Spread.Avg(),
		TValue:         c.Spread.TValue,
		StdDev:         c.Spread.StdDev(),
		Deviation:      c.Spread.Deviation(),
		Warm:           c.Spread.Warm(),
		TholdBidPlace:  c.Tholds.BidPlace,
		TholdBidRemove: c.Tholds.BidRemove,
		TholdAskPlace:  c.Tholds.AskPlace,
		TholdAskRemove: c.Tholds.AskRemove,
		Exposure:       c.exposure(),
		AggRepeat:      c.aggRepeat,
		DroppedTicks:   c.droppedTicks,
		LastError:      string(c.LastError),
	}

	for i, leg := range []*exec.Leg{c.Leg1, c.Leg2} {
		st.Legs[i] = LegStatus{
			Symbol:        leg.Inst.Symbol,
			Net:           leg.Pos.Net(),
			NetposPass:    leg.Pos.NetposPass,
			NetposAgg:     leg.Pos.NetposAgg,
			Long:          leg.Pos.Long,
			Short:         leg.Pos.Short,
			AvgLong:       leg.Pos.AvgLong,
			AvgShort:      leg.Pos.AvgShort,
			RealisedPNL:   leg.Pos.RealisedPNL,
			UnrealisedPNL: leg.Pos.UnrealisedPNL,
			NetPNL:        leg.Pos.NetPNL,
			TransTotal:    leg.Pos.TransTotal,
			OpenOrders:    leg.Table.Len(),
			TradeCount:    leg.Pos.TradeCount,
			RejectCount:   leg.Pos.RejectCount,
			BidPx:         leg.Inst.BidPx[0],
			AskPx:         leg.Inst.AskPx[0],
		}
		leg.Table.Each(func(ord *exec.Order) {
			st.Orders = append(st.Orders, OrderStatusRow{
				ID:      ord.ID,
				Side:    ord.Side.String(),
				Price:   ord.Price,
				OpenQty: ord.OpenQty,
				Status:  ord.Status.String(),
				Hit:     ord.Hit.String(),
			})
		})
	}
	return st
}
