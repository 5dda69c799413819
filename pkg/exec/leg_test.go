package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairarb-go/pkg/market"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

func newTestLeg() *Leg {
	inst := testInst()
	inst.BidPx[0] = 100
	inst.AskPx[0] = 101
	inst.BidQty[0] = 50
	inst.AskQty[0] = 60
	inst.ValidBids = 1
	inst.ValidAsks = 1
	return NewLeg("leg1", inst, types.NewThresholdSet(), nil, nil)
}

func resp(id uint32, rt shm.ResponseType, qty int64, price float64) *shm.OrderResponse {
	return &shm.OrderResponse{RespType: rt, OrderID: id, Qty: int32(qty), Price: price}
}

func TestSendOrderDuplicatePrice(t *testing.T) {
	l := newTestLeg()

	id, ok := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	require.True(t, ok)
	require.NotZero(t, id)
	assert.Equal(t, int32(1), l.Pos.BuyOpenOrders)
	assert.Equal(t, int64(10), l.Pos.BuyOpenQty)
	assert.Equal(t, 50.0, l.Table.Get(id).QuantAhead)

	_, ok = l.SendOrder(types.Buy, 100, 5, 0, types.HitStandard, types.RoleQuote)
	assert.False(t, ok, "duplicate price must be refused")
}

func TestOrderLifecycleConfirmThenTrade(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)

	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))
	assert.Equal(t, types.StatusNewConfirm, l.Table.Get(id).Status)

	// partial
	l.HandleResponse(resp(id, shm.RespTradeConfirm, 4, 100))
	require.NotNil(t, l.Table.Get(id))
	assert.Equal(t, int64(6), l.Table.Get(id).OpenQty)
	assert.Equal(t, int64(4), l.Pos.Net())
	assert.Equal(t, int64(6), l.Pos.BuyOpenQty)

	// remainder
	l.HandleResponse(resp(id, shm.RespTradeConfirm, 6, 100))
	assert.Nil(t, l.Table.Get(id), "fully traded order must be removed")
	assert.Equal(t, int64(10), l.Pos.Net())
	assert.Equal(t, int64(10), l.Pos.NetposPass)
	assert.Equal(t, int32(0), l.Pos.BuyOpenOrders)
	assert.Equal(t, int64(0), l.Pos.BuyOpenQty)
}

func TestNewRejectRollsBack(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)

	l.HandleResponse(resp(id, shm.RespNewReject, 10, 0))
	assert.Nil(t, l.Table.Get(id))
	assert.Equal(t, int64(0), l.Pos.BuyOpenQty)
	assert.Equal(t, int32(0), l.Pos.BuyOpenOrders)
	assert.Equal(t, int32(1), l.Pos.RejectCount)
	assert.Equal(t, int64(0), l.Pos.Net())
}

func TestModifyOptimisticInsertAndReject(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))

	ok := l.ModifyOrder(id, 99, 10, types.HitStandard)
	require.True(t, ok)
	ord := l.Table.Get(id)
	assert.Equal(t, types.StatusModifyPending, ord.Status)
	// both prices indexed while pending
	assert.Same(t, ord, l.Table.Bids[100.0])
	assert.Same(t, ord, l.Table.Bids[99.0])

	// another modify while pending must be refused
	assert.False(t, l.ModifyOrder(id, 98, 10, types.HitStandard))

	l.HandleResponse(resp(id, shm.RespModifyReject, 10, 0))
	assert.Equal(t, types.StatusModifyReject, ord.Status)
	assert.Nil(t, l.Table.Bids[99.0], "optimistic entry must be rolled back")
	assert.Same(t, ord, l.Table.Bids[100.0])
	assert.Equal(t, 100.0, ord.Price)
	assert.Equal(t, int64(10), l.Pos.BuyOpenQty)
}

func TestModifyConfirmSwitchesPrice(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))

	require.True(t, l.ModifyOrder(id, 99, 8, types.HitStandard))
	l.HandleResponse(resp(id, shm.RespModifyConfirm, 8, 99))

	ord := l.Table.Get(id)
	assert.Equal(t, 99.0, ord.Price)
	assert.Equal(t, int64(8), ord.OpenQty)
	assert.Nil(t, l.Table.Bids[100.0])
	assert.Same(t, ord, l.Table.Bids[99.0])
	assert.Equal(t, int64(8), l.Pos.BuyOpenQty)
}

func TestCancelConfirmRemoves(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Sell, 101, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 101))

	require.True(t, l.CancelOrder(id))
	assert.Equal(t, types.StatusCancelPending, l.Table.Get(id).Status)
	// cancel-pending orders cannot be cancelled twice
	assert.False(t, l.CancelOrder(id))

	l.HandleResponse(resp(id, shm.RespCancelConfirm, 10, 0))
	assert.Nil(t, l.Table.Get(id))
	assert.Equal(t, int64(0), l.Pos.SellOpenQty)
	assert.Equal(t, int32(0), l.Pos.SellOpenOrders)
}

func TestCancelRejectSynthesizesFill(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))
	require.True(t, l.CancelOrder(id))

	// zero remaining qty on cancel reject == the order actually traded
	l.HandleResponse(resp(id, shm.RespCancelReject, 0, 0))
	assert.Nil(t, l.Table.Get(id))
	assert.Equal(t, int64(10), l.Pos.Net())
	assert.Equal(t, 100.0, l.Pos.LastTradePx)
}

func TestCancelRejectNonZeroQtyKeepsOrder(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))
	require.True(t, l.CancelOrder(id))

	l.HandleResponse(resp(id, shm.RespCancelReject, 10, 0))
	ord := l.Table.Get(id)
	require.NotNil(t, ord)
	assert.Equal(t, types.StatusNewConfirm, ord.Status)
	assert.Equal(t, int64(0), l.Pos.Net())
}

func TestOverfillClamped(t *testing.T) {
	l := newTestLeg()
	id, _ := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	l.HandleResponse(resp(id, shm.RespNewConfirm, 10, 100))

	l.HandleResponse(resp(id, shm.RespTradeConfirm, 15, 100))
	assert.Nil(t, l.Table.Get(id))
	assert.Equal(t, int64(10), l.Pos.Net(), "fill beyond open qty is clamped")
}

func TestUnknownOrderIgnored(t *testing.T) {
	l := newTestLeg()
	l.HandleResponse(resp(424242, shm.RespTradeConfirm, 10, 100))
	assert.Equal(t, int64(0), l.Pos.Net())
	assert.Equal(t, int32(0), l.Pos.TradeCount)
}

type fullSender struct{}

func (fullSender) SendNew(*market.Instrument, *Order) (uint32, error) {
	return 0, types.Kindf(types.ErrQueueFull, "request ring full")
}
func (fullSender) SendModify(*market.Instrument, *Order, float64, int64) error { return nil }
func (fullSender) SendCancel(*market.Instrument, *Order) error                 { return nil }

func TestQueueFullCountsAsLocalReject(t *testing.T) {
	l := newTestLeg()
	l.Sender = fullSender{}

	_, ok := l.SendOrder(types.Buy, 100, 10, 0, types.HitStandard, types.RoleQuote)
	assert.False(t, ok)
	assert.Equal(t, int32(1), l.Pos.RejectCount)
	assert.Equal(t, 0, l.Table.Len(), "no order created on queue full")
	assert.Equal(t, int64(0), l.Pos.BuyOpenQty)
	assert.Equal(t, int64(0), l.Pos.Net())
}

func TestRiskBreach(t *testing.T) {
	l := newTestLeg()
	l.Thr.StopLoss = 100

	assert.Equal(t, "", l.RiskBreach())
	l.Pos.NetPNL = -101
	assert.Equal(t, "stop_loss", l.RiskBreach())

	l.Pos.NetPNL = 0
	l.Thr.UPNLLoss = 50
	l.Pos.UnrealisedPNL = -51
	assert.Equal(t, "upnl_loss", l.RiskBreach())

	l.Pos.UnrealisedPNL = 0
	l.Pos.RejectCount = int32(l.Thr.RejectLimit) + 1
	assert.Equal(t, "reject_limit", l.RiskBreach())
}

func TestWorstOrderSelection(t *testing.T) {
	l := newTestLeg()
	a, _ := l.SendOrder(types.Buy, 100, 1, 0, types.HitStandard, types.RoleQuote)
	b, _ := l.SendOrder(types.Buy, 99, 1, 1, types.HitStandard, types.RoleQuote)
	_ = a
	assert.Equal(t, b, l.Table.WorstBid().ID)

	c, _ := l.SendOrder(types.Sell, 101, 1, 0, types.HitStandard, types.RoleQuote)
	d, _ := l.SendOrder(types.Sell, 102, 1, 1, types.HitStandard, types.RoleQuote)
	_ = c
	assert.Equal(t, d, l.Table.WorstAsk().ID)
}
