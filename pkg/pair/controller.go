package pair

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// Controller 配对策略控制器：腿1被动报价，腿2主动对冲。
// 行情线程和回报线程都通过 mu 串行进入，任意时刻只有一个事件在被应用。
type Controller struct {
	mu sync.Mutex

	StrategyID int32
	Account    string

	Leg1 *exec.Leg // 被动腿（报价）
	Leg2 *exec.Leg // 主动腿（对冲）

	Spread *SpreadModel
	Thr1   *types.ThresholdSet
	Thr2   *types.ThresholdSet
	TVar   *shm.ScalarCell

	Tholds Thresholds // 最近一次计算的动态阈值

	state types.StratState

	// 主动对冲状态
	aggRepeat     int
	lastAggSide   types.Side
	lastAggMS     int64
	buyAggOrders  int32
	sellAggOrders int32

	// 止损冷却
	stopLossAtMS   int64
	stopLossResume bool

	// NowMS 可注入，测试用
	NowMS func() int64
	// OnState 状态迁移钩子（host 挂快照保存、事件发布）
	OnState func(from, to types.StratState)

	LastError types.ErrKind

	Log           *logrus.Entry
	lastMonitorNS uint64
	droppedTicks  int64
}

// NewController 创建控制器
func NewController(strategyID int32, account string, leg1, leg2 *exec.Leg,
	thr1, thr2 *types.ThresholdSet, tvar *shm.ScalarCell, log *logrus.Entry) *Controller {

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Controller{
		StrategyID: strategyID,
		Account:    account,
		Leg1:       leg1,
		Leg2:       leg2,
		Thr1:       thr1,
		Thr2:       thr2,
		TVar:       tvar,
		Spread:     NewSpreadModel(thr1.PriceRatio, thr1.SpreadAlpha, thr1.AvgSpreadAway),
		state:      types.StateInit,
		aggRepeat:  1,
		NowMS:      func() int64 { return time.Now().UnixMilli() },
		Log:        log.WithField("strategy", strategyID),
	}
	return c
}

// SeedFromSnapshot 从日界快照恢复：EMA 种子 + 两腿昨仓。
func (c *Controller) SeedFromSnapshot(avgOri float64, ytd1, twoDay1, ytd2 int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if avgOri != 0 {
		c.Spread.Seed(avgOri)
	}
	c.Leg1.Pos.NetposPass = ytd1 + twoDay1
	c.Leg1.Pos.NetposPassYtd = ytd1
	c.Leg2.Pos.NetposAgg = ytd2
	c.Leg2.Pos.NetposAggYtd = ytd2

	c.Log.WithFields(logrus.Fields{
		"avg_ori": avgOri, "netpos_pass1": c.Leg1.Pos.NetposPass, "netpos_agg2": ytd2,
	}).Info("snapshot restored")
}

// DayRecord 日界快照持久化需要的三个量
func (c *Controller) DayRecord() (avgOri float64, netPass1, netAgg2 int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Spread.AvgOri, c.Leg1.Pos.NetposPass, c.Leg2.Pos.NetposAgg
}

// State 当前状态
func (c *Controller) State() types.StratState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(to types.StratState) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.Log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Info("state transition")
	if c.OnState != nil {
		c.OnState(from, to)
	}
}

// Start INIT → RUNNING
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == types.StateInit {
		c.setState(types.StateRunning)
	}
}

// Activate RUNNING → ACTIVE
func (c *Controller) Activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateRunning {
		return false
	}
	c.aggRepeat = 1
	c.setState(types.StateActive)
	return true
}

// Deactivate ACTIVE → RUNNING。保留持仓，停止新报价，撤掉在途。
func (c *Controller) Deactivate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateActive {
		return false
	}
	c.setState(types.StateDeactivating)
	c.Leg1.CancelAll()
	c.Leg2.CancelAll()
	c.setState(types.StateRunning)
	return true
}

// Squareoff 任意状态 → SQUARING_OFF
func (c *Controller) Squareoff(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.squareoffLocked(reason, false)
}

// ReloadThresholds 原子替换参数集，下一 tick 生效
func (c *Controller) ReloadThresholds(thr1, thr2 *types.ThresholdSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Thr1 = thr1
	c.Thr2 = thr2
	c.Leg1.Thr = thr1
	c.Leg2.Thr = thr2
	c.Log.Info("thresholds reloaded")
}

// NetExposure 敞口 = netpos_pass1 + netpos_agg2 + pending_agg2
func (c *Controller) NetExposure() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exposure()
}

func (c *Controller) exposure() int64 {
	return c.Leg1.Pos.NetposPass + c.Leg2.Pos.NetposAgg + c.pendingAgg()
}

// pendingAgg 腿2在途主动单的带符号合计
func (c *Controller) pendingAgg() int64 {
	var pending int64
	for _, ord := range c.Leg2.Table.Orders {
		if ord.Hit.Aggressive() {
			if ord.Side == types.Buy {
				pending += ord.OpenQty
			} else {
				pending -= ord.OpenQty
			}
		}
	}
	return pending
}

// OnMarketData 行情入口。坏 tick（负价、交叉盘）直接丢弃。
func (c *Controller) OnMarketData(inst *market.Instrument, md *shm.MarketUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if malformedTick(md) {
		c.droppedTicks++
		return
	}

	isLeg1 := inst == c.Leg1.Inst
	if isLeg1 {
		c.Leg1.Inst.UpdateFromMD(md)
		c.Leg1.OnMD()
	} else {
		c.Leg2.Inst.UpdateFromMD(md)
		c.Leg2.OnMD()
	}

	if c.TVar != nil {
		c.Spread.SetTValue(c.TVar.Load())
	}

	if !c.Leg1.Inst.HasValidBook() || !c.Leg2.Inst.HasValidBook() {
		return
	}

	c.Spread.Update(c.Leg1.Inst.MidPrice(), c.Leg2.Inst.MidPrice(), isLeg1)

	c.checkStopLossResume()
	if c.checkRisk() {
		return
	}

	switch c.state {
	case types.StateSquaringOff:
		c.driveSquareoff()
		return
	case types.StateActive:
	default:
		return
	}

	c.monitorLog()

	// 腿1 tick 驱动被动报价；两腿 tick 都驱动对冲
	if isLeg1 {
		c.quote()
	}
	c.cancelStaleAggOrders()
	c.hedge()
}

// OnResponse 回报入口
func (c *Controller) OnResponse(resp *shm.OrderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inLeg1 := c.Leg1.Table.Get(resp.OrderID) != nil
	inLeg2 := !inLeg1 && c.Leg2.Table.Get(resp.OrderID) != nil
	if !inLeg1 && !inLeg2 {
		// 多进程共享回报队列，静默丢弃
		return
	}

	if inLeg1 {
		c.Leg1.HandleResponse(resp)
	} else {
		c.trackAggOrder(resp)
		c.Leg2.HandleResponse(resp)
	}

	// 成交意味着市场在动，追单阶梯从头来
	if resp.RespType == shm.RespTradeConfirm {
		c.aggRepeat = 1
	}

	if c.checkRisk() {
		return
	}

	switch c.state {
	case types.StateSquaringOff:
		c.driveSquareoff()
	case types.StateActive:
		c.hedge()
	}
}

// trackAggOrder 腿2主动单终态时回收在途计数
func (c *Controller) trackAggOrder(resp *shm.OrderResponse) {
	ord := c.Leg2.Table.Get(resp.OrderID)
	if ord == nil || !ord.Hit.Aggressive() {
		return
	}

	terminal := false
	switch resp.RespType {
	case shm.RespTradeConfirm:
		terminal = ord.OpenQty-int64(resp.Qty) <= 0
	case shm.RespCancelConfirm, shm.RespNewReject, shm.RespORSReject, shm.RespRMSReject:
		terminal = true
	}
	if !terminal {
		return
	}
	if ord.Side == types.Buy {
		if c.buyAggOrders > 0 {
			c.buyAggOrders--
		}
	} else {
		if c.sellAggOrders > 0 {
			c.sellAggOrders--
		}
	}
}

// quote 被动腿报价决策，z-score 偏离对四阈值
func (c *Controller) quote() {
	th := ComputeThresholds(c.Thr1, c.Leg1.Pos.NetposPass)
	c.Tholds = th
	dev := c.Spread.Deviation()

	// 撤出界订单
	if dev >= -th.BidRemove {
		for _, ord := range bidOrders(c.Leg1) {
			c.Leg1.CancelOrder(ord.ID)
		}
	}
	if dev <= th.AskRemove {
		for _, ord := range askOrders(c.Leg1) {
			c.Leg1.CancelOrder(ord.ID)
		}
	}

	if dev <= -th.BidPlace {
		c.placeSide(types.Buy)
	}
	if dev >= th.AskPlace {
		c.placeSide(types.Sell)
	}
}

// placeSide 一侧的挂单维护：无单则挂顶、偏离顶档则改单、
// 多档补挂、容量满时换掉最差单。
func (c *Controller) placeSide(side types.Side) {
	leg := c.Leg1
	inst := leg.Inst
	pos := leg.Pos

	// 仓位闸门
	if side == types.Buy {
		if c.Thr1.MaxPos > 0 && pos.NetposPass >= c.Thr1.MaxPos {
			for _, ord := range bidOrders(leg) {
				leg.CancelOrder(ord.ID)
			}
			return
		}
	} else {
		if c.Thr1.MaxPos > 0 && -pos.NetposPass >= c.Thr1.MaxPos {
			for _, ord := range askOrders(leg) {
				leg.CancelOrder(ord.ID)
			}
			return
		}
	}

	top, hit := c.quotePrice(side)
	if top <= 0 {
		return
	}

	working := bidOrders(leg)
	if side == types.Sell {
		working = askOrders(leg)
	}

	if len(working) == 0 {
		qty := c.quoteQty(side)
		if qty > 0 {
			leg.SendOrder(side, top, qty, 0, hit, types.RoleQuote)
		}
		return
	}

	// 已有挂单但没人在顶档：把最好的那张改到顶
	if leg.Table.AtPrice(side, top) == nil {
		best := bestOrder(working, side)
		if best != nil && canModify(best) {
			leg.ModifyOrder(best.ID, top, best.OpenQty, hit)
		}
	}

	// 多档补挂
	for level := 1; level < c.Thr1.MaxQuoteLevel && level < market.BookDepth; level++ {
		px := inst.BidPx[level]
		if side == types.Sell {
			px = inst.AskPx[level]
		}
		if px <= 0 {
			break
		}
		if leg.Table.AtPrice(side, px) != nil {
			continue
		}

		atCapacity := false
		if side == types.Buy {
			atCapacity = int(pos.BuyOpenOrders) > c.Thr1.SupportingOrders ||
				pos.BuyOpenQty+pos.NetposPass >= c.Thr1.MaxPos
		} else {
			atCapacity = int(pos.SellOpenOrders) > c.Thr1.SupportingOrders ||
				pos.SellOpenQty-pos.NetposPass >= c.Thr1.MaxPos
		}

		if atCapacity {
			c.replaceWorstIfBetter(side, px)
			continue
		}
		qty := c.quoteQty(side)
		if qty > 0 {
			leg.SendOrder(side, px, qty, int32(level), types.HitStandard, types.RoleQuote)
		}
	}
}

// quotePrice 顶档报价：隐形簿打开且盘口有缝时改善一跳
func (c *Controller) quotePrice(side types.Side) (float64, types.HitType) {
	inst := c.Leg1.Inst
	if side == types.Buy {
		if c.Thr1.UseInvisibleBook {
			if px := inst.ImproveBid(); px > inst.BidPx[0] {
				return px, types.HitImprove
			}
		}
		return inst.BidPx[0], types.HitStandard
	}
	if c.Thr1.UseInvisibleBook {
		if px := inst.ImproveAsk(); px < inst.AskPx[0] {
			return px, types.HitImprove
		}
	}
	return inst.AskPx[0], types.HitStandard
}

// quoteQty 下单量受 MaxPos 和在途量约束
func (c *Controller) quoteQty(side types.Side) int64 {
	pos := c.Leg1.Pos
	qty := c.Thr1.OrderSize
	if c.Thr1.MaxPos <= 0 {
		return qty
	}
	var room int64
	if side == types.Buy {
		room = c.Thr1.MaxPos - pos.NetposPass - pos.BuyOpenQty
	} else {
		room = c.Thr1.MaxPos + pos.NetposPass - pos.SellOpenQty
	}
	if room < qty {
		qty = room
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}

// replaceWorstIfBetter 容量满时，新价更优则撤掉最差单腾位
func (c *Controller) replaceWorstIfBetter(side types.Side, newPx float64) {
	leg := c.Leg1
	if side == types.Buy {
		worst := leg.Table.WorstBid()
		if worst != nil && newPx > worst.Price {
			leg.CancelOrder(worst.ID)
		}
	} else {
		worst := leg.Table.WorstAsk()
		if worst != nil && newPx < worst.Price {
			leg.CancelOrder(worst.ID)
		}
	}
}

// cancelStaleAggOrders 腿2在途主动单是按可成交价发出的，
// 还挂着说明没追上，撤掉让阶梯重报。
func (c *Controller) cancelStaleAggOrders() {
	c.Leg2.Table.Each(func(ord *exec.Order) {
		if ord.Hit.Aggressive() {
			c.Leg2.CancelOrder(ord.ID)
		}
	})
}

// checkRisk 风控检查，触发则转平仓。返回是否触发。
func (c *Controller) checkRisk() bool {
	if c.state != types.StateActive && c.state != types.StateRunning {
		return false
	}

	reason := c.Leg1.RiskBreach()
	if reason == "" {
		reason = c.Leg2.RiskBreach()
	}

	// 跨腿合计亏损
	if reason == "" && types.RiskEnabled(c.Thr1.MaxLoss) {
		combined := c.Leg1.Pos.NetPNL + c.Leg2.Pos.NetPNL
		if combined < -c.Thr1.MaxLoss {
			reason = "max_loss_combined"
		}
	}
	if reason == "" {
		return false
	}

	c.LastError = types.ErrRiskBreach
	resume := reason == "stop_loss"
	c.Log.WithField("reason", reason).Warn("risk cap breached")
	c.squareoffLocked(reason, resume)
	return true
}

// checkStopLossResume 止损冷却结束后自动恢复
func (c *Controller) checkStopLossResume() {
	if !c.stopLossResume || c.state != types.StateStopped {
		return
	}
	if c.NowMS()-c.stopLossAtMS < c.Thr1.StopLossPauseS*1000 {
		return
	}
	c.stopLossResume = false
	c.Leg1.Pos.OnStopLoss = false
	c.Leg2.Pos.OnStopLoss = false
	c.Leg1.Pos.RejectCount = 0
	c.Leg2.Pos.RejectCount = 0
	// 恢复后止损按增量亏损算，否则已实现亏损会立刻再触发
	c.Leg1.Pos.PNLBase = c.Leg1.Pos.NetPNL
	c.Leg2.Pos.PNLBase = c.Leg2.Pos.NetPNL
	c.setState(types.StateRunning)
	c.Log.Info("stop-loss pause elapsed, resuming")
}

func (c *Controller) monitorLog() {
	nowNS := c.Leg1.Inst.ExchTimestamp
	if nowNS-c.lastMonitorNS < uint64(time.Second) {
		return
	}
	c.lastMonitorNS = nowNS
	c.Log.WithFields(logrus.Fields{
		"spread": c.Spread.Current, "avg": c.Spread.Avg(), "dev": c.Spread.Deviation(),
		"thold_bp": c.Tholds.BidPlace, "thold_ap": c.Tholds.AskPlace,
		"pass1": c.Leg1.Pos.NetposPass, "agg2": c.Leg2.Pos.NetposAgg,
		"pnl": c.Leg1.Pos.NetPNL + c.Leg2.Pos.NetPNL,
	}).Info("monitor")
}

// DroppedTicks 被丢弃的坏 tick 数
func (c *Controller) DroppedTicks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.droppedTicks
}

func malformedTick(md *shm.MarketUpdate) bool {
	d := &md.Data
	if d.ValidBids > 0 && d.Bids[0].Price < 0 {
		return true
	}
	if d.ValidAsks > 0 && d.Asks[0].Price < 0 {
		return true
	}
	// 交叉盘
	if d.ValidBids > 0 && d.ValidAsks > 0 && d.Asks[0].Price > 0 &&
		d.Bids[0].Price >= d.Asks[0].Price {
		return true
	}
	return false
}

func bidOrders(leg *exec.Leg) []*exec.Order {
	out := make([]*exec.Order, 0, len(leg.Table.Bids))
	for _, ord := range leg.Table.Bids {
		out = append(out, ord)
	}
	return out
}

func askOrders(leg *exec.Leg) []*exec.Order {
	out := make([]*exec.Order, 0, len(leg.Table.Asks))
	for _, ord := range leg.Table.Asks {
		out = append(out, ord)
	}
	return out
}

func bestOrder(orders []*exec.Order, side types.Side) *exec.Order {
	var best *exec.Order
	for _, ord := range orders {
		if best == nil {
			best = ord
			continue
		}
		if side == types.Buy && ord.Price > best.Price {
			best = ord
		}
		if side == types.Sell && ord.Price < best.Price {
			best = ord
		}
	}
	return best
}

func canModify(ord *exec.Order) bool {
	return ord.Status == types.StatusNewConfirm ||
		ord.Status == types.StatusModifyConfirm ||
		ord.Status == types.StatusModifyReject
}
