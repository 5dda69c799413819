package host

import (
	"fmt"
	"time"

	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// OrderIDRange 每个 client-id 的订单号区间宽度。
// order_id = client_id*OrderIDRange + 本地序号，回报按整除过滤。
const OrderIDRange = 1_000_000

// Sender 把腿管理器的下单意图变成共享内存请求记录。
// 进程本地缓冲满即刻报 QUEUE_FULL，不阻塞策略线程。
type Sender struct {
	h *Host
}

func (s *Sender) SendNew(inst *market.Instrument, ord *exec.Order) (uint32, error) {
	id := s.h.nextOrderID()
	req := s.h.buildRequest(shm.ReqNewOrder, inst, id, ord.Side, ord.Price, ord.Qty, 0)
	if err := s.h.submit(req); err != nil {
		return 0, err
	}
	MetricRequests.WithLabelValues("new").Inc()
	return id, nil
}

func (s *Sender) SendModify(inst *market.Instrument, ord *exec.Order, newPrice float64, newQty int64) error {
	req := s.h.buildRequest(shm.ReqModifyOrder, inst, ord.ID, ord.Side, newPrice, newQty, ord.DoneQty)
	if err := s.h.submit(req); err != nil {
		return err
	}
	MetricRequests.WithLabelValues("modify").Inc()
	return nil
}

func (s *Sender) SendCancel(inst *market.Instrument, ord *exec.Order) error {
	req := s.h.buildRequest(shm.ReqCancelOrder, inst, ord.ID, ord.Side, ord.Price, ord.OpenQty, ord.DoneQty)
	if err := s.h.submit(req); err != nil {
		return err
	}
	MetricRequests.WithLabelValues("cancel").Inc()
	return nil
}

func (h *Host) nextOrderID() uint32 {
	return uint32(h.clientID)*OrderIDRange + h.seq.Add(1)
}

// OwnsOrder 回报过滤：订单号区间是否属于本进程
func (h *Host) OwnsOrder(orderID uint32) bool {
	return int64(orderID)/OrderIDRange == h.clientID
}

func (h *Host) buildRequest(rt shm.RequestType, inst *market.Instrument,
	orderID uint32, side types.Side, price float64, qty, filled int64) *shm.OrderRequest {

	req := &shm.OrderRequest{
		ReqType:    rt,
		OrdType:    shm.OrderLimit,
		Duration:   shm.DurationDay,
		OrderID:    orderID,
		Token:      uint32(inst.Token),
		Qty:        int32(qty),
		QtyFilled:  int32(filled),
		Price:      price,
		Timestamp:  uint64(time.Now().UnixNano()),
		StrategyID: h.strategyID,
	}
	if side == types.Buy {
		req.Side = shm.SideBuy
	} else {
		req.Side = shm.SideSell
	}
	// 按张报单的品种换算数量
	if !inst.SendInLots && inst.LotSize > 1 {
		req.Qty = int32(float64(qty) * inst.LotSize)
		req.QtyFilled = int32(float64(filled) * inst.LotSize)
	}

	shm.PutString(req.Contract.Symbol[:], inst.Symbol)
	if inst.ExpiryDate > 0 {
		shm.PutString(req.Contract.Expiry[:], fmt.Sprintf("%d", inst.ExpiryDate))
	}
	shm.PutString(req.AccountID[:], h.account)
	shm.PutString(req.Product[:], inst.Product)
	return req
}

// submit 请求进本地缓冲，由写线程刷进共享内存。
// 缓冲满等价于请求环持续满，按 QUEUE_FULL 本地拒单。
func (h *Host) submit(req *shm.OrderRequest) error {
	select {
	case h.reqCh <- req:
		return nil
	default:
		MetricQueueFull.Inc()
		return types.Kindf(types.ErrQueueFull, "local request buffer full (order %d)", req.OrderID)
	}
}
