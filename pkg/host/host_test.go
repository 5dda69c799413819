package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairarb-go/pkg/config"
	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/pair"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

// Test key range (avoid collisions with live segments)
const (
	testMDKey      = 0xA22001
	testReqKey     = 0xA22002
	testRespKey    = 0xA22003
	testCounterKey = 0xA22005
)

func testInst() *market.Instrument {
	return &market.Instrument{
		Symbol: "ag2603", Product: "ag", TickSize: 1, LotSize: 1,
		Multiplier: 15, SendInLots: true, Token: 101,
	}
}

func localHost(buffer int) *Host {
	return &Host{
		clientID:   7,
		account:    "acct1",
		strategyID: 92201,
		reqCh:      make(chan *shm.OrderRequest, buffer),
	}
}

func TestOrderIDNamespace(t *testing.T) {
	h := localHost(8)

	assert.Equal(t, uint32(7_000_001), h.nextOrderID())
	assert.Equal(t, uint32(7_000_002), h.nextOrderID())

	assert.True(t, h.OwnsOrder(7_000_002))
	assert.False(t, h.OwnsOrder(8_000_001))
	assert.False(t, h.OwnsOrder(6_999_999))
}

func TestSenderBuildsRequest(t *testing.T) {
	h := localHost(8)
	s := h.Sender()

	ord := exec.NewOrder(0, types.Buy, 47.5, 10, types.HitStandard, types.RoleQuote)
	id, err := s.SendNew(testInst(), ord)
	require.NoError(t, err)
	assert.Equal(t, uint32(7_000_001), id)

	req := <-h.reqCh
	assert.Equal(t, shm.ReqNewOrder, req.ReqType)
	assert.Equal(t, shm.OrderLimit, req.OrdType)
	assert.Equal(t, shm.SideBuy, req.Side)
	assert.Equal(t, "ag2603", shm.CString(req.Contract.Symbol[:]))
	assert.Equal(t, "acct1", shm.CString(req.AccountID[:]))
	assert.Equal(t, "ag", shm.CString(req.Product[:]))
	assert.Equal(t, int32(10), req.Qty)
	assert.Equal(t, 47.5, req.Price)
	assert.Equal(t, int32(92201), req.StrategyID)
	assert.Equal(t, uint32(101), req.Token)
}

func TestSenderConvertsLotsToUnits(t *testing.T) {
	h := localHost(8)
	inst := testInst()
	inst.SendInLots = false
	inst.LotSize = 5

	ord := exec.NewOrder(0, types.Sell, 50, 10, types.HitCross, types.RoleAggHedge)
	_, err := h.Sender().SendNew(inst, ord)
	require.NoError(t, err)

	req := <-h.reqCh
	assert.Equal(t, shm.SideSell, req.Side)
	assert.Equal(t, int32(50), req.Qty, "10 lots * 5 units")
}

func TestSubmitFullBufferIsQueueFull(t *testing.T) {
	h := localHost(1)
	s := h.Sender()
	inst := testInst()

	_, err := s.SendNew(inst, exec.NewOrder(0, types.Buy, 47, 10, types.HitStandard, types.RoleQuote))
	require.NoError(t, err)

	_, err = s.SendNew(inst, exec.NewOrder(0, types.Buy, 46, 10, types.HitStandard, types.RoleQuote))
	require.Error(t, err)
	ke, ok := err.(*types.KindError)
	require.True(t, ok)
	assert.Equal(t, types.ErrQueueFull, ke.Kind)

	// cancel path fails the same way
	err = s.SendCancel(inst, exec.NewOrder(7_000_001, types.Buy, 47, 10, types.HitStandard, types.RoleQuote))
	require.Error(t, err)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.IPC = config.IPCConfig{
		MDKey: testMDKey, ReqKey: testReqKey, RespKey: testRespKey,
		ClientStore: testCounterKey,
		MDCapacity:  64, ReqCapacity: 16, RespCapacity: 16,
		FirstClientID: 100, CreateQueues: true,
	}
	cfg.Strategy.StrategyID = 92201
	cfg.Strategy.Account = "acct1"
	cfg.Strategy.Leg1 = config.LegConfig{Symbol: "ag2603", Product: "ag", Token: 101, TickSize: 1, Multiplier: 15, SendInLots: true}
	cfg.Strategy.Leg2 = config.LegConfig{Symbol: "ag2605", Product: "ag", Token: 102, TickSize: 1, Multiplier: 15, SendInLots: true}
	return cfg
}

func publishMD(t *testing.T, q *shm.RingQueue[shm.MarketUpdate], symbol string, bid, ask float64) {
	t.Helper()
	var md shm.MarketUpdate
	shm.PutString(md.Header.Symbol[:], symbol)
	md.Data.Bids[0] = shm.BookLevel{Price: bid, Qty: 10, Orders: 1}
	md.Data.Asks[0] = shm.BookLevel{Price: ask, Qty: 10, Orders: 1}
	md.Data.ValidBids = 1
	md.Data.ValidAsks = 1
	require.True(t, q.TryEnqueue(&md))
}

func TestHostRoutesAndFilters(t *testing.T) {
	cfg := testConfig()
	h, err := New(cfg, nil)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, int64(100), h.ClientID())

	thr := types.NewThresholdSet()
	leg1 := exec.NewLeg("leg1", cfg.Strategy.Leg1.Instrument(), thr, h.Sender(), nil)
	leg2 := exec.NewLeg("leg2", cfg.Strategy.Leg2.Instrument(), thr, h.Sender(), nil)
	ctrl := pair.NewController(92201, "acct1", leg1, leg2, thr, thr, nil, nil)
	ctrl.Start()

	h.Bind(ctrl)
	h.Run()

	// 网关侧写入行情
	gwMD, err := shm.AttachRingQueue[shm.MarketUpdate](testMDKey, 64, shm.MDElemSize)
	require.NoError(t, err)
	defer gwMD.Close()

	publishMD(t, gwMD, "ag2605", 50, 51)
	publishMD(t, gwMD, "cu2603", 70000, 70010) // 别的策略的合约
	publishMD(t, gwMD, "ag2603", 100, 101)

	require.Eventually(t, func() bool {
		st := ctrl.Snapshot()
		return st.Legs[0].BidPx == 100 && st.Legs[1].BidPx == 50
	}, 2*time.Second, time.Millisecond, "market data should route by symbol")

	// 别人的回报要被区间过滤掉
	gwResp, err := shm.AttachRingQueue[shm.OrderResponse](testRespKey, 16, shm.RespElemSize)
	require.NoError(t, err)
	defer gwResp.Close()

	foreign := shm.OrderResponse{RespType: shm.RespTradeConfirm, OrderID: 99_000_001, Qty: 10, Price: 50}
	require.True(t, gwResp.TryEnqueue(&foreign))
	own := shm.OrderResponse{RespType: shm.RespCancelConfirm, OrderID: uint32(h.ClientID())*OrderIDRange + 1}
	require.True(t, gwResp.TryEnqueue(&own))

	time.Sleep(50 * time.Millisecond)
	st := ctrl.Snapshot()
	assert.Equal(t, int64(0), st.Legs[1].NetposAgg, "foreign trade must not touch positions")
}

func TestHostWritesRequestsToRing(t *testing.T) {
	cfg := testConfig()
	cfg.IPC.MDKey = testMDKey + 0x10
	cfg.IPC.ReqKey = testReqKey + 0x10
	cfg.IPC.RespKey = testRespKey + 0x10
	cfg.IPC.ClientStore = testCounterKey + 0x10

	h, err := New(cfg, nil)
	require.NoError(t, err)
	defer h.Close()

	thr := types.NewThresholdSet()
	leg1 := exec.NewLeg("leg1", cfg.Strategy.Leg1.Instrument(), thr, h.Sender(), nil)
	leg2 := exec.NewLeg("leg2", cfg.Strategy.Leg2.Instrument(), thr, h.Sender(), nil)
	ctrl := pair.NewController(92201, "acct1", leg1, leg2, thr, thr, nil, nil)
	ctrl.Start()
	h.Bind(ctrl)
	h.Run()

	gwReq, err := shm.AttachRingQueue[shm.OrderRequest](int(cfg.IPC.ReqKey), 16, shm.ReqElemSize)
	require.NoError(t, err)
	defer gwReq.Close()

	id, err := h.Sender().SendNew(leg1.Inst,
		exec.NewOrder(0, types.Buy, 47.5, 10, types.HitStandard, types.RoleQuote))
	require.NoError(t, err)

	var req shm.OrderRequest
	require.Eventually(t, func() bool { return gwReq.Dequeue(&req) },
		2*time.Second, time.Millisecond, "writer thread should flush the request")
	assert.Equal(t, id, req.OrderID)
	assert.Equal(t, "ag2603", shm.CString(req.Contract.Symbol[:]))
}
