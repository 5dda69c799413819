// Package journal 把成交流水和订单终态异步落进 sqlite。
// 热路径只做一次非阻塞的 channel 写，满了计数丢弃。
package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    strategy_id INTEGER NOT NULL,
    leg         TEXT    NOT NULL,
    order_id    INTEGER NOT NULL,
    side        TEXT    NOT NULL,
    price       REAL    NOT NULL,
    qty         INTEGER NOT NULL,
    hit         TEXT    NOT NULL,
    realised    REAL    NOT NULL DEFAULT 0,
    ts          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS order_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    strategy_id INTEGER NOT NULL,
    leg         TEXT    NOT NULL,
    order_id    INTEGER NOT NULL,
    event       TEXT    NOT NULL,
    price       REAL    NOT NULL DEFAULT 0,
    qty         INTEGER NOT NULL DEFAULT 0,
    ts          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy_id, ts);
CREATE INDEX IF NOT EXISTS idx_events_order   ON order_events(order_id);
`

// Fill 一笔成交记录
type Fill struct {
	StrategyID int32
	Leg        string
	OrderID    uint32
	Side       string
	Price      float64
	Qty        int64
	Hit        string
	Realised   float64
	TS         time.Time
}

// OrderEvent 订单终态事件（拒单、撤单、全部成交）
type OrderEvent struct {
	StrategyID int32
	Leg        string
	OrderID    uint32
	Event      string
	Price      float64
	Qty        int64
	TS         time.Time
}

type entry struct {
	fill  *Fill
	event *OrderEvent
}

// Journal 单写线程的 sqlite 流水
type Journal struct {
	db      *sql.DB
	ch      chan entry
	done    chan struct{}
	stop    sync.Once
	dropped atomic.Int64
	log     *logrus.Entry
}

// Open 打开（或新建）流水库并启动写线程
func Open(path string, buffer int, log *logrus.Entry) (*Journal, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if buffer <= 0 {
		buffer = 1024
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %q: %w", path, err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	j := &Journal{
		db:   db,
		ch:   make(chan entry, buffer),
		done: make(chan struct{}),
		log:  log.WithField("comp", "journal"),
	}
	go j.loop()
	return j, nil
}

// RecordFill 非阻塞入队，队列满丢弃计数
func (j *Journal) RecordFill(f *Fill) {
	select {
	case j.ch <- entry{fill: f}:
	default:
		j.dropped.Add(1)
	}
}

// RecordEvent 非阻塞入队订单事件
func (j *Journal) RecordEvent(ev *OrderEvent) {
	select {
	case j.ch <- entry{event: ev}:
	default:
		j.dropped.Add(1)
	}
}

// Dropped 被丢弃的记录数
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close 停止入队、排空缓冲、关库
func (j *Journal) Close() error {
	j.stop.Do(func() {
		close(j.ch)
		<-j.done
	})
	return j.db.Close()
}

func (j *Journal) loop() {
	defer close(j.done)
	for e := range j.ch {
		var err error
		switch {
		case e.fill != nil:
			_, err = j.db.Exec(
				`INSERT INTO fills (strategy_id, leg, order_id, side, price, qty, hit, realised, ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.fill.StrategyID, e.fill.Leg, e.fill.OrderID, e.fill.Side,
				e.fill.Price, e.fill.Qty, e.fill.Hit, e.fill.Realised, e.fill.TS)
		case e.event != nil:
			_, err = j.db.Exec(
				`INSERT INTO order_events (strategy_id, leg, order_id, event, price, qty, ts)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.event.StrategyID, e.event.Leg, e.event.OrderID, e.event.Event,
				e.event.Price, e.event.Qty, e.event.TS)
		}
		if err != nil {
			j.log.WithError(err).Warn("journal insert failed")
		}
	}
}
