package exec

import (
	"errors"

	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/market"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// Sender 请求出口。由 host 实现：分配订单号、写共享内存请求队列。
// 队列满返回 QUEUE_FULL 类错误，调用方按本地拒单处理。
type Sender interface {
	SendNew(inst *market.Instrument, ord *Order) (uint32, error)
	SendModify(inst *market.Instrument, ord *Order, newPrice float64, newQty int64) error
	SendCancel(inst *market.Instrument, ord *Order) error
}

// FillHook 成交回调，喂流水给日志/journal/NATS。realised 为本笔平仓盈亏增量。
type FillHook func(legName string, f *Fill, realised float64)

// Leg 单腿订单管理器：订单簿 + 持仓 + 回报状态机。
// 两条腿复用同一类型，主动/被动行为由上层决定。
type Leg struct {
	Name  string
	Inst  *market.Instrument
	Table *OrderTable
	Pos   *PositionState
	Thr   *types.ThresholdSet

	Sender Sender
	OnFill FillHook
	Log    *logrus.Entry

	FillOnCxlReject bool // 撤单被拒且剩余量为 0 按全部成交处理

	nextTestOID uint32 // Sender 为空（测试）时本地发号
}

// NewLeg 创建单腿管理器
func NewLeg(name string, inst *market.Instrument, thr *types.ThresholdSet, snd Sender, log *logrus.Entry) *Leg {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Leg{
		Name:            name,
		Inst:            inst,
		Table:           NewOrderTable(),
		Pos:             &PositionState{},
		Thr:             thr,
		Sender:          snd,
		Log:             log.WithField("leg", name),
		FillOnCxlReject: true,
	}
}

// SendOrder 发新单。同价位同方向已有挂单时拒发。
// 队列满按本地拒单计数，不产生订单。
func (l *Leg) SendOrder(side types.Side, price float64, qty int64, level int32,
	hit types.HitType, role types.OrderRole) (uint32, bool) {

	if l.Table.AtPrice(side, price) != nil {
		return 0, false
	}

	ord := NewOrder(0, side, price, qty, hit, role)
	ord.Level = level

	// 排队量估计
	if side == types.Buy {
		if level >= 0 && level < market.BookDepth && market.SamePx(l.Inst.BidPx[level], price) {
			ord.QuantAhead = l.Inst.BidQty[level]
		}
	} else {
		if level >= 0 && level < market.BookDepth && market.SamePx(l.Inst.AskPx[level], price) {
			ord.QuantAhead = l.Inst.AskQty[level]
		}
	}

	if l.Sender != nil {
		id, err := l.Sender.SendNew(l.Inst, ord)
		if err != nil {
			l.Pos.RejectCount++
			var ke *types.KindError
			if errors.As(err, &ke) && ke.Kind == types.ErrQueueFull {
				l.Log.WithFields(logrus.Fields{"side": side, "price": price}).
					Warn("request queue full, order rejected locally")
			} else {
				l.Log.WithError(err).Error("send new order failed")
			}
			return 0, false
		}
		ord.ID = id
	} else {
		l.nextTestOID++
		ord.ID = l.nextTestOID
	}

	if side == types.Buy {
		l.Pos.BuyOpenOrders++
		l.Pos.BuyOpenQty += qty
	} else {
		l.Pos.SellOpenOrders++
		l.Pos.SellOpenQty += qty
	}

	l.Table.Insert(ord)
	l.Pos.OrderCount++
	return ord.ID, true
}

// ModifyOrder 改单。新价格乐观插入价格索引，被拒时回退。
func (l *Leg) ModifyOrder(orderID uint32, price float64, qty int64, hit types.HitType) bool {
	ord := l.Table.Get(orderID)
	if ord == nil {
		return false
	}
	if ord.Status == types.StatusModifyPending || ord.Status == types.StatusCancelPending {
		return false
	}
	if l.Table.AtPrice(ord.Side, price) != nil {
		return false
	}

	if l.Sender != nil {
		if err := l.Sender.SendModify(l.Inst, ord, price, qty); err != nil {
			l.Pos.RejectCount++
			return false
		}
	}

	if !ord.ModifyWait {
		ord.OldPrice = ord.Price
		ord.OldQty = ord.OpenQty
	}
	ord.Status = types.StatusModifyPending
	ord.NewPrice = price
	ord.NewQty = qty
	ord.Hit = hit
	ord.ModifyWait = true

	// 乐观插入
	if ord.Side == types.Buy {
		l.Table.Bids[price] = ord
		l.Pos.BuyOpenQty += qty - ord.OpenQty
	} else {
		l.Table.Asks[price] = ord
		l.Pos.SellOpenQty += qty - ord.OpenQty
	}
	return true
}

// CancelOrder 撤单。只有确认态可撤。
func (l *Leg) CancelOrder(orderID uint32) bool {
	ord := l.Table.Get(orderID)
	if ord == nil {
		return false
	}
	if ord.Status != types.StatusNewConfirm &&
		ord.Status != types.StatusModifyConfirm &&
		ord.Status != types.StatusModifyReject {
		return false
	}

	if l.Sender != nil {
		if err := l.Sender.SendCancel(l.Inst, ord); err != nil {
			l.Pos.RejectCount++
			return false
		}
	}

	ord.Status = types.StatusCancelPending
	l.Pos.CancelCount++
	return true
}

// CancelAtPrice 按价格撤单
func (l *Leg) CancelAtPrice(side types.Side, price float64) bool {
	ord := l.Table.AtPrice(side, price)
	if ord == nil {
		return false
	}
	return l.CancelOrder(ord.ID)
}

// CancelAll 撤掉全部在途订单
func (l *Leg) CancelAll() {
	l.Table.Each(func(ord *Order) {
		l.CancelOrder(ord.ID)
	})
}

// HasWorkingOrders 是否还有在途订单
func (l *Leg) HasWorkingOrders() bool {
	return l.Table.Len() > 0
}

// Flat 持仓是否已平
func (l *Leg) Flat() bool {
	return l.Pos.Net() == 0
}

// HandleResponse 回报状态机
func (l *Leg) HandleResponse(resp *shm.OrderResponse) {
	ord := l.Table.Get(resp.OrderID)
	if ord == nil {
		// 多进程共用队列，别人的单子直接忽略
		return
	}

	switch resp.RespType {
	case shm.RespNewConfirm:
		l.onNewConfirm(resp, ord)
	case shm.RespNewReject:
		l.onNewReject(ord)
	case shm.RespModifyConfirm:
		l.onModifyConfirm(resp, ord)
	case shm.RespModifyReject:
		l.onModifyReject(ord)
	case shm.RespCancelConfirm:
		l.onCancelConfirm(resp, ord)
	case shm.RespCancelReject:
		l.onCancelReject(resp, ord)
	case shm.RespTradeConfirm:
		if ord.Status != types.StatusModifyPending && ord.Status != types.StatusCancelPending {
			ord.Status = types.StatusNewConfirm
		}
		l.onTrade(resp, ord)
	case shm.RespORSReject, shm.RespRMSReject:
		l.onRouterReject(ord)
	default:
		l.Log.WithFields(logrus.Fields{"type": resp.RespType, "order": resp.OrderID}).
			Warn("unhandled response type")
	}
}

func (l *Leg) onNewConfirm(resp *shm.OrderResponse, ord *Order) {
	ord.Status = types.StatusNewConfirm
	l.Pos.ConfirmCount++
	l.Pos.RejectCount = 0

	// 重估排队量
	if ord.Side == types.Buy {
		for i := int32(0); i < l.Inst.ValidBids; i++ {
			if market.SamePx(l.Inst.BidPx[i], ord.Price) {
				ord.QuantAhead = l.Inst.BidQty[i]
				break
			}
		}
	} else {
		for i := int32(0); i < l.Inst.ValidAsks; i++ {
			if market.SamePx(l.Inst.AskPx[i], ord.Price) {
				ord.QuantAhead = l.Inst.AskQty[i]
				break
			}
		}
	}
	_ = resp
}

func (l *Leg) onNewReject(ord *Order) {
	ord.Status = types.StatusNewReject
	l.Pos.RejectCount++
	l.releaseOpen(ord, ord.OpenQty)
	l.removeOrder(ord.ID)
	l.Log.WithField("order", ord.ID).Warn("new order rejected")
}

func (l *Leg) onModifyConfirm(resp *shm.OrderResponse, ord *Order) {
	// 旧价格出索引，切换到新价
	if ord.Side == types.Buy {
		if l.Table.Bids[ord.Price] == ord {
			delete(l.Table.Bids, ord.Price)
		}
	} else {
		if l.Table.Asks[ord.Price] == ord {
			delete(l.Table.Asks, ord.Price)
		}
	}

	ord.Price = ord.NewPrice
	ord.Qty = ord.NewQty
	ord.OpenQty = ord.NewQty
	ord.ModifyWait = false
	ord.Status = types.StatusModifyConfirm

	l.Pos.ConfirmCount++
	l.Pos.RejectCount = 0
	_ = resp
}

// onModifyReject 回退乐观插入
func (l *Leg) onModifyReject(ord *Order) {
	if ord.Status != types.StatusTraded {
		ord.Status = types.StatusModifyReject
	}

	if ord.Side == types.Buy {
		if l.Table.Bids[ord.NewPrice] == ord {
			delete(l.Table.Bids, ord.NewPrice)
		}
		l.Pos.BuyOpenQty -= ord.NewQty - ord.OpenQty
	} else {
		if l.Table.Asks[ord.NewPrice] == ord {
			delete(l.Table.Asks, ord.NewPrice)
		}
		l.Pos.SellOpenQty -= ord.NewQty - ord.OpenQty
	}
	ord.ModifyWait = false
}

func (l *Leg) onCancelConfirm(resp *shm.OrderResponse, ord *Order) {
	qty := ord.OpenQty

	if ord.ModifyWait {
		l.onModifyReject(ord)
	}

	ord.Status = types.StatusCancelConfirm
	ord.OpenQty -= qty
	ord.CxlQty = qty
	l.releaseOpen(ord, qty)

	l.Pos.ConfirmCount++
	l.Pos.RejectCount = 0

	if ord.OpenQty <= 0 {
		l.removeOrder(resp.OrderID)
	}
}

// onCancelReject 撤单被拒。剩余量 0 说明实际已全部成交，合成成交回报。
func (l *Leg) onCancelReject(resp *shm.OrderResponse, ord *Order) {
	if resp.Qty == 0 && l.FillOnCxlReject {
		l.Log.WithFields(logrus.Fields{"order": resp.OrderID, "price": ord.Price, "qty": ord.OpenQty}).
			Warn("trade on cancel reject, synthesizing fill")
		synth := &shm.OrderResponse{
			OrderID:   resp.OrderID,
			Price:     ord.Price,
			Qty:       int32(ord.OpenQty),
			Timestamp: resp.Timestamp,
		}
		if ord.Status == types.StatusCancelPending {
			ord.Status = types.StatusNewConfirm
		}
		l.onTrade(synth, ord)
		return
	}

	if ord.Status != types.StatusTraded {
		ord.Status = types.StatusNewConfirm
	}
	l.Pos.RejectCount++
}

func (l *Leg) onTrade(resp *shm.OrderResponse, ord *Order) {
	tradeQty := int64(resp.Qty)

	// 负剩余量异常：截到当前剩余量，按全部成交收尾
	if tradeQty > ord.OpenQty {
		l.Log.WithFields(logrus.Fields{"order": ord.ID, "fill": tradeQty, "open": ord.OpenQty}).
			Error("fill exceeds open qty, clamping")
		tradeQty = ord.OpenQty
	}
	if tradeQty <= 0 {
		return
	}

	ord.OpenQty -= tradeQty
	ord.DoneQty += tradeQty
	l.releaseOpen(ord, tradeQty)

	f := &Fill{
		OrderID: ord.ID,
		Side:    ord.Side,
		Price:   resp.Price,
		Qty:     tradeQty,
		Hit:     ord.Hit,
		TS:      resp.Timestamp,
	}
	realised := l.Pos.ApplyFill(f, l.Inst)

	if l.OnFill != nil {
		l.OnFill(l.Name, f, realised)
	}

	l.Log.WithFields(logrus.Fields{
		"order": ord.ID, "side": ord.Side.String(), "price": resp.Price, "qty": tradeQty,
		"net": l.Pos.Net(), "pnl": l.Pos.NetPNL,
	}).Info("trade")

	if ord.OpenQty == 0 {
		if ord.ModifyWait {
			l.onModifyReject(ord)
		}
		ord.Status = types.StatusTraded
		l.removeOrder(ord.ID)
	}
}

func (l *Leg) onRouterReject(ord *Order) {
	l.Pos.RejectCount++
	switch ord.Status {
	case types.StatusCancelPending, types.StatusTraded:
		return
	case types.StatusModifyPending:
		l.onModifyReject(ord)
	default:
		l.onNewReject(ord)
	}
}

// releaseOpen 回收在途量
func (l *Leg) releaseOpen(ord *Order, qty int64) {
	if ord.Side == types.Buy {
		l.Pos.BuyOpenQty -= qty
	} else {
		l.Pos.SellOpenQty -= qty
	}
}

func (l *Leg) removeOrder(id uint32) {
	ord := l.Table.Remove(id)
	if ord == nil {
		return
	}
	if ord.Side == types.Buy {
		l.Pos.BuyOpenOrders--
	} else {
		l.Pos.SellOpenOrders--
	}
}

// OnMD BBO 变了才重算浮盈
func (l *Leg) OnMD() {
	if l.Inst.BidPx[0] != l.Pos.BestBidLastPNL || l.Inst.AskPx[0] != l.Pos.BestAskLastPNL {
		l.Pos.CalculatePNL(l.Inst)
	}
}

// RiskBreach 风控检查。返回触发的类别描述，未触发返回空串。
func (l *Leg) RiskBreach() string {
	if l.Thr == nil {
		return ""
	}
	if types.RiskEnabled(l.Thr.StopLoss) && l.Pos.NetPNL-l.Pos.PNLBase < -l.Thr.StopLoss {
		return "stop_loss"
	}
	if types.RiskEnabled(l.Thr.MaxLoss) && l.Pos.GrossPNL < -l.Thr.MaxLoss {
		return "max_loss"
	}
	if types.RiskEnabled(l.Thr.UPNLLoss) && l.Pos.UnrealisedPNL < -l.Thr.UPNLLoss {
		return "upnl_loss"
	}
	if types.RiskEnabled(l.Thr.MaxDrawdown) && -l.Pos.Drawdown > l.Thr.MaxDrawdown {
		return "max_drawdown"
	}
	if l.Thr.RejectLimit > 0 && int(l.Pos.RejectCount) > l.Thr.RejectLimit {
		return "reject_limit"
	}
	return ""
}
