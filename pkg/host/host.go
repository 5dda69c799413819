// Package host 把策略接到共享内存网关：三条环形队列的轮询线程、
// 请求写线程、订单号分配与回报过滤。
package host

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/config"
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/pair"
	"pairarb-go/pkg/shm"
	"pairarb-go/pkg/types"
)

const (
	defaultMDCapacity   = 1 << 16
	defaultReqCapacity  = 1 << 12
	defaultRespCapacity = 1 << 12

	// 空转多少轮后让出 CPU
	spinLimit = 1024

	// 请求环持续满时的重试上限，超过按本地拒单回灌
	enqueueRetries = 4096
)

// Host 策略与网关之间的 IPC 宿主。
// 行情线程和回报线程各自轮询，控制器内部用锁串行化。
type Host struct {
	mdQ   *shm.RingQueue[shm.MarketUpdate]
	reqQ  *shm.RingQueue[shm.OrderRequest]
	respQ *shm.RingQueue[shm.OrderResponse]
	tvar  *shm.ScalarCell
	store *shm.ClientCounter

	clientID int64
	seq      atomic.Uint32

	ctrl  *pair.Controller
	insts map[string]*market.Instrument

	account    string
	strategyID int32

	reqCh chan *shm.OrderRequest
	done  chan struct{}
	wg    sync.WaitGroup
	stop  sync.Once

	// OnTimer 秒级定时钩子（快照落盘、WS 推送）
	OnTimer func()

	created bool // 自建段退出时销毁
	log     *logrus.Entry
}

// New 挂接（或按 create_queues 自建）全部共享内存段并领取 client-id。
// 任何一段失败都是 IPC_FATAL，进程没法继续。
func New(cfg *config.Config, log *logrus.Entry) (*Host, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Host{
		account:    cfg.Strategy.Account,
		strategyID: cfg.Strategy.StrategyID,
		reqCh:      make(chan *shm.OrderRequest, 256),
		done:       make(chan struct{}),
		created:    cfg.IPC.CreateQueues,
		log:        log.WithField("comp", "host"),
	}

	mdCap := int(cfg.IPC.MDCapacity)
	if mdCap == 0 {
		mdCap = defaultMDCapacity
	}
	reqCap := int(cfg.IPC.ReqCapacity)
	if reqCap == 0 {
		reqCap = defaultReqCapacity
	}
	respCap := int(cfg.IPC.RespCapacity)
	if respCap == 0 {
		respCap = defaultRespCapacity
	}

	var err error
	if cfg.IPC.CreateQueues {
		h.mdQ, err = shm.CreateRingQueue[shm.MarketUpdate](int(cfg.IPC.MDKey), mdCap, shm.MDElemSize)
		if err == nil {
			h.reqQ, err = shm.CreateRingQueue[shm.OrderRequest](int(cfg.IPC.ReqKey), reqCap, shm.ReqElemSize)
		}
		if err == nil {
			h.respQ, err = shm.CreateRingQueue[shm.OrderResponse](int(cfg.IPC.RespKey), respCap, shm.RespElemSize)
		}
		if err == nil {
			firstID := cfg.IPC.FirstClientID
			if firstID == 0 {
				firstID = 1
			}
			h.store, err = shm.CreateClientCounter(int(cfg.IPC.ClientStore), firstID)
		}
		if err == nil && cfg.IPC.TVarKey > 0 {
			h.tvar, err = shm.CreateScalarCell(cfg.IPC.TVarKey, 0)
		}
	} else {
		h.mdQ, err = shm.AttachRingQueue[shm.MarketUpdate](int(cfg.IPC.MDKey), mdCap, shm.MDElemSize)
		if err == nil {
			h.reqQ, err = shm.AttachRingQueue[shm.OrderRequest](int(cfg.IPC.ReqKey), reqCap, shm.ReqElemSize)
		}
		if err == nil {
			h.respQ, err = shm.AttachRingQueue[shm.OrderResponse](int(cfg.IPC.RespKey), respCap, shm.RespElemSize)
		}
		if err == nil {
			h.store, err = shm.AttachClientCounter(int(cfg.IPC.ClientStore))
		}
		if err == nil {
			h.tvar, err = shm.OpenScalarCell(cfg.IPC.TVarKey)
		}
	}
	if err != nil {
		h.detach()
		return nil, types.NewKindError(types.ErrIPCFatal, err)
	}

	h.clientID = h.store.NextID()
	h.log = h.log.WithField("client", h.clientID)
	h.log.WithFields(logrus.Fields{
		"md_key": cfg.IPC.MDKey, "req_key": cfg.IPC.ReqKey, "resp_key": cfg.IPC.RespKey,
	}).Info("ipc attached")
	return h, nil
}

// Sender 给腿管理器用的下单通道
func (h *Host) Sender() *Sender {
	return &Sender{h: h}
}

// TVar t-var 单元，可能为 nil
func (h *Host) TVar() *shm.ScalarCell {
	return h.tvar
}

// ClientID 本进程领取的 client-id
func (h *Host) ClientID() int64 {
	return h.clientID
}

// Bind 挂上控制器并建符号路由表。必须在 Run 之前。
func (h *Host) Bind(ctrl *pair.Controller) {
	h.ctrl = ctrl
	h.insts = map[string]*market.Instrument{
		ctrl.Leg1.Inst.Symbol: ctrl.Leg1.Inst,
		ctrl.Leg2.Inst.Symbol: ctrl.Leg2.Inst,
	}
}

// Run 启动行情、回报、写请求和定时四条线程
func (h *Host) Run() {
	h.wg.Add(4)
	go h.mdLoop()
	go h.respLoop()
	go h.writerLoop()
	go h.timerLoop()
}

// Close 停线程、断开共享内存。自建段（测试/回放）连段一起删。
func (h *Host) Close() {
	h.stop.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.detach()
	})
}

func (h *Host) detach() {
	if h.mdQ != nil {
		if h.created {
			h.mdQ.Destroy()
		} else {
			h.mdQ.Close()
		}
	}
	if h.reqQ != nil {
		if h.created {
			h.reqQ.Destroy()
		} else {
			h.reqQ.Close()
		}
	}
	if h.respQ != nil {
		if h.created {
			h.respQ.Destroy()
		} else {
			h.respQ.Close()
		}
	}
	if h.store != nil {
		if h.created {
			h.store.Destroy()
		} else {
			h.store.Close()
		}
	}
	if h.tvar != nil {
		if h.created {
			h.tvar.Destroy()
		} else {
			h.tvar.Close()
		}
	}
}

// mdLoop 行情轮询：按记录头里的符号路由到对应合约
func (h *Host) mdLoop() {
	defer h.wg.Done()

	var md shm.MarketUpdate
	spins := 0
	for {
		select {
		case <-h.done:
			return
		default:
		}

		if !h.mdQ.Dequeue(&md) {
			spins++
			if spins > spinLimit {
				spins = 0
				runtime.Gosched()
			}
			continue
		}
		spins = 0

		symbol := shm.CString(md.Header.Symbol[:])
		inst, ok := h.insts[symbol]
		if !ok {
			continue // 别的策略的合约
		}
		MetricTicks.WithLabelValues(symbol).Inc()
		h.ctrl.OnMarketData(inst, &md)
	}
}

// respLoop 回报轮询：订单号区间不属于本进程的回报直接丢
func (h *Host) respLoop() {
	defer h.wg.Done()

	var resp shm.OrderResponse
	spins := 0
	for {
		select {
		case <-h.done:
			return
		default:
		}

		if !h.respQ.Dequeue(&resp) {
			spins++
			if spins > spinLimit {
				spins = 0
				runtime.Gosched()
			}
			continue
		}
		spins = 0

		if !h.OwnsOrder(resp.OrderID) {
			continue
		}
		MetricResponses.Inc()
		h.ctrl.OnResponse(&resp)
	}
}

// writerLoop 把本地缓冲刷进请求环。环持续满说明网关失联或积压，
// 有限重试后按 ORS 拒单回灌，让腿状态机走本地拒单路径。
func (h *Host) writerLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case req := <-h.reqCh:
			if h.flush(req) {
				continue
			}
			MetricQueueFull.Inc()
			h.log.WithFields(logrus.Fields{
				"order": req.OrderID, "type": int32(req.ReqType),
			}).Error("request ring full, rejecting locally")
			h.ctrl.OnResponse(&shm.OrderResponse{
				RespType:   shm.RespORSReject,
				OrderID:    req.OrderID,
				Qty:        req.Qty,
				Price:      req.Price,
				Side:       req.Side,
				Timestamp:  uint64(time.Now().UnixNano()),
				StrategyID: h.strategyID,
			})
		}
	}
}

func (h *Host) flush(req *shm.OrderRequest) bool {
	for i := 0; i < enqueueRetries; i++ {
		if h.reqQ.TryEnqueue(req) {
			return true
		}
		runtime.Gosched()
	}
	return false
}

// timerLoop 秒级杂务：指标刷新 + 外挂钩子
func (h *Host) timerLoop() {
	defer h.wg.Done()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-tick.C:
			st := h.ctrl.Snapshot()
			MetricExposure.Set(float64(st.Exposure))
			MetricNetPNL.Set(st.Legs[0].NetPNL + st.Legs[1].NetPNL)
			MetricDeviation.Set(st.Deviation)
			MetricState.Set(float64(h.ctrl.State()))
			if h.OnTimer != nil {
				h.OnTimer()
			}
		}
	}
}
