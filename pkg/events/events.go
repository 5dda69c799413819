// Package events 把成交、状态迁移和周期快照发到 NATS，
// 给监控/风控侧旁路订阅。连不上只降级，不影响交易主流程。
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher 旁路事件发布。conn 为 nil 表示禁用，所有方法安全空转。
type Publisher struct {
	nc      *nats.Conn
	subject string // pairarb.events.<strategy_id>
	log     *logrus.Entry
}

// FillEvent 成交事件载荷
type FillEvent struct {
	StrategyID int32   `json:"strategy_id"`
	Leg        string  `json:"leg"`
	OrderID    uint32  `json:"order_id"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Qty        int64   `json:"qty"`
	Realised   float64 `json:"realised"`
	TS         int64   `json:"ts_ms"`
}

// StateEvent 状态迁移事件载荷
type StateEvent struct {
	StrategyID int32  `json:"strategy_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	TS         int64  `json:"ts_ms"`
}

// Connect 连接 NATS。url 为空或连接失败都返回禁用的 Publisher。
func Connect(url string, strategyID int32, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Publisher{
		subject: fmt.Sprintf("pairarb.events.%d", strategyID),
		log:     log.WithField("comp", "events"),
	}
	if url == "" {
		return p
	}

	nc, err := nats.Connect(url,
		nats.Name(fmt.Sprintf("pairarb-%d", strategyID)),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		p.log.WithError(err).Warn("nats unavailable, events disabled")
		return p
	}
	p.nc = nc
	p.log.WithField("url", url).Info("nats connected")
	return p
}

// Enabled 是否真的在发
func (p *Publisher) Enabled() bool {
	return p.nc != nil
}

// PublishFill 发一笔成交
func (p *Publisher) PublishFill(ev *FillEvent) {
	p.publish(p.subject+".fills", ev)
}

// PublishState 发一次状态迁移
func (p *Publisher) PublishState(ev *StateEvent) {
	p.publish(p.subject+".state", ev)
}

// PublishStatus 发周期快照，v 直接用控制器的 Status
func (p *Publisher) PublishStatus(v interface{}) {
	p.publish(p.subject+".status", v)
}

func (p *Publisher) publish(subject string, v interface{}) {
	if p.nc == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		p.log.WithError(err).Warn("event marshal failed")
		return
	}
	// 异步发布，慢消费者不回压交易线程
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.WithError(err).Warn("event publish failed")
	}
}

// Close 刷掉在途消息并断开
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	p.nc.Flush()
	p.nc.Close()
}
