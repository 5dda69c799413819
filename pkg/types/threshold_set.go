package types

// ThresholdSet 策略参数集。价差单位与行情价格一致，
// 数量单位为手。未配置的风控上限用大哨兵值表示不启用。
type ThresholdSet struct {
	// 挂撤阈值基准（spread 偏离值）
	BidPlaceBegin  float64 `yaml:"bid_place_begin"`
	BidPlaceLong   float64 `yaml:"bid_place_long"`  // netpos_pass = +MaxPos 时的买入挂单阈值
	BidPlaceShort  float64 `yaml:"bid_place_short"` // netpos_pass = -MaxPos 时的买入挂单阈值
	BidRemoveBegin float64 `yaml:"bid_remove_begin"`
	BidRemoveLong  float64 `yaml:"bid_remove_long"`
	BidRemoveShort float64 `yaml:"bid_remove_short"`
	AskPlaceBegin  float64 `yaml:"ask_place_begin"`
	AskPlaceLong   float64 `yaml:"ask_place_long"`
	AskPlaceShort  float64 `yaml:"ask_place_short"`
	AskRemoveBegin float64 `yaml:"ask_remove_begin"`
	AskRemoveLong  float64 `yaml:"ask_remove_long"`
	AskRemoveShort float64 `yaml:"ask_remove_short"`

	// 仓位与下单规模
	OrderSize int64 `yaml:"order_size"` // 单笔下单手数
	MaxPos    int64 `yaml:"max_pos"`    // netpos_pass 绝对值上限

	// 价差统计
	SpreadAlpha   float64 `yaml:"spread_alpha"`    // avg_ori 的 EMA 系数
	AvgSpreadAway int     `yaml:"avg_spread_away"` // 标准差滚动窗口长度

	// 主动对冲
	Slop          int   `yaml:"slop"`            // 第三次追单一次让出的 tick 数
	AggWindowMs   int64 `yaml:"agg_window_ms"`   // 追单窗口，缺省 500
	MaxAggRepeat  int   `yaml:"max_agg_repeat"`  // 超过即转平仓，缺省 3
	MaxHedgeQty   int64 `yaml:"max_hedge_qty"`   // 单次对冲手数上限
	HedgeRatio    int64 `yaml:"hedge_ratio"`     // 腿2/腿1 对冲比例，缺省 1
	PriceRatio    float64 `yaml:"price_ratio"`   // spread = px1 - ratio*px2，缺省 1

	// 报单结构
	MaxQuoteLevel    int  `yaml:"max_quote_level"`   // 被动腿同侧最多挂几档
	SupportingOrders int  `yaml:"supporting_orders"` // 同侧在途订单上限
	MaxOSOrder       int  `yaml:"max_os_order"`      // 两侧合计在途上限
	UseInvisibleBook bool `yaml:"use_invisible_book"`

	// 风控
	StopLoss       float64 `yaml:"stop_loss"`        // NetPNL 低于 -StopLoss 触发止损
	MaxLoss        float64 `yaml:"max_loss"`         // 终止性亏损上限
	UPNLLoss       float64 `yaml:"upnl_loss"`        // 浮亏上限
	MaxDrawdown    float64 `yaml:"max_drawdown"`     // 回撤上限
	RejectLimit    int     `yaml:"reject_limit"`     // 拒单次数上限
	StopLossPauseS int64   `yaml:"stop_loss_pause_s"` // 止损冷却秒数，缺省 900

	// 交易成本（按成交金额比例 + 按手固定）
	ExchCostRate1 float64 `yaml:"exch_cost_rate1"` // 腿1 ad-valorem
	ExchCostRate2 float64 `yaml:"exch_cost_rate2"`
	ExchCostFlat1 float64 `yaml:"exch_cost_flat1"` // 腿1 每手固定费
	ExchCostFlat2 float64 `yaml:"exch_cost_flat2"`
}

const disabledRiskCap = 1e13

// NewThresholdSet 返回带缺省值的参数集
func NewThresholdSet() *ThresholdSet {
	return &ThresholdSet{
		OrderSize:        1,
		MaxPos:           1,
		SpreadAlpha:      0.6,
		AvgSpreadAway:    20,
		Slop:             5,
		AggWindowMs:      500,
		MaxAggRepeat:     3,
		MaxHedgeQty:      1,
		HedgeRatio:       1,
		PriceRatio:       1,
		MaxQuoteLevel:    1,
		SupportingOrders: 1,
		MaxOSOrder:       5,
		StopLoss:         disabledRiskCap,
		MaxLoss:          disabledRiskCap,
		UPNLLoss:         disabledRiskCap,
		MaxDrawdown:      disabledRiskCap,
		RejectLimit:      200,
		StopLossPauseS:   900,
	}
}

// RiskEnabled 判断某个上限是否启用
func RiskEnabled(cap float64) bool { return cap < disabledRiskCap/2 }
