// trader 是配对策略主进程：挂共享内存、恢复日界快照、
// 起控制面，然后交给行情/回报线程跑。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/api"
	"pairarb-go/pkg/config"
	"pairarb-go/pkg/events"
	"pairarb-go/pkg/exec"
	"pairarb-go/pkg/host"
	"pairarb-go/pkg/journal"
	"pairarb-go/pkg/logx"
	"pairarb-go/pkg/pair"
	"pairarb-go/pkg/snapshot"
	"pairarb-go/pkg/types"
)

func main() {
	var (
		cfgPath     = flag.String("config", "config.yaml", "YAML config path")
		controlPath = flag.String("control", "", "legacy control file (overrides legs + thresholds)")
		yearPrefix  = flag.String("year", "", "two-digit year prefix for legacy base names, e.g. 26")
	)
	flag.Parse()

	if err := run(*cfgPath, *controlPath, *yearPrefix); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath, controlPath, yearPrefix string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if controlPath != "" {
		if err := cfg.ApplyLegacy(controlPath, yearPrefix); err != nil {
			return err
		}
	}

	if err := logx.Init(cfg.Log); err != nil {
		return err
	}
	defer logx.Flush()
	log := logx.Component("trader")

	h, err := host.New(cfg, logx.Logger.WithField("comp", "host"))
	if err != nil {
		// IPC_FATAL：段挂不上没法交易
		return err
	}
	defer h.Close()

	var jn *journal.Journal
	if cfg.Journal.Path != "" {
		jn, err = journal.Open(cfg.Journal.Path, cfg.Journal.Buffer, logx.Component("journal"))
		if err != nil {
			return err
		}
		defer jn.Close()
	}

	pub := events.Connect(cfg.Events.NATSURL, cfg.Strategy.StrategyID, logx.Component("events"))
	defer pub.Close()

	leg1 := exec.NewLeg("leg1", cfg.Strategy.Leg1.Instrument(), cfg.Strategy.Thresholds1,
		h.Sender(), logx.Logger.WithField("leg", "leg1"))
	leg2 := exec.NewLeg("leg2", cfg.Strategy.Leg2.Instrument(), cfg.Strategy.Thresholds2,
		h.Sender(), logx.Logger.WithField("leg", "leg2"))

	sid := cfg.Strategy.StrategyID
	hookFills(leg1, sid, jn, pub)
	hookFills(leg2, sid, jn, pub)

	ctrl := pair.NewController(sid, cfg.Strategy.Account, leg1, leg2,
		cfg.Strategy.Thresholds1, cfg.Strategy.Thresholds2, h.TVar(),
		logx.Logger.WithField("comp", "pair"))

	// 日界快照恢复
	rec, err := snapshot.Load(cfg.Strategy.SnapshotFile, sid)
	if err != nil {
		log.WithError(err).Error("snapshot load failed, starting from zero")
	}
	ctrl.SeedFromSnapshot(rec.AvgSpread, rec.Ytd1, rec.TwoDay, rec.Ytd2)

	// 钩子在策略锁内回调，落快照要出锁后再做
	ctrl.OnState = func(from, to types.StratState) {
		pub.PublishState(&events.StateEvent{
			StrategyID: sid, From: from.String(), To: to.String(), TS: time.Now().UnixMilli(),
		})
		if to == types.StateStopped {
			go saveSnapshot(cfg, ctrl, log)
		}
	}

	h.Bind(ctrl)
	h.OnTimer = func() {
		pub.PublishStatus(ctrl.Snapshot())
	}

	var srv *api.Server
	if cfg.API.Addr != "" {
		srv = api.New(cfg.API, ctrl, cfg.Strategy.ModelFile, logx.Component("api"))
		srv.Start()
	}

	ctrl.Start()
	if cfg.Strategy.AutoActivate {
		ctrl.Activate()
	}
	h.Run()
	log.WithFields(logrus.Fields{
		"strategy": sid, "client": h.ClientID(),
		"leg1": cfg.Strategy.Leg1.Symbol, "leg2": cfg.Strategy.Leg2.Symbol,
	}).Info("trader up")

	// 收到信号先清仓再落快照
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Warn("shutting down")

	ctrl.Squareoff("shutdown")
	waitStopped(ctrl, 30*time.Second)

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		srv.Shutdown(ctx)
		cancel()
	}

	saveSnapshot(cfg, ctrl, log)
	return nil
}

// hookFills 成交旁路：journal 落库 + NATS 外发
func hookFills(leg *exec.Leg, sid int32, jn *journal.Journal, pub *events.Publisher) {
	leg.OnFill = func(legName string, f *exec.Fill, realised float64) {
		host.MetricFills.WithLabelValues(legName).Inc()
		if jn != nil {
			jn.RecordFill(&journal.Fill{
				StrategyID: sid, Leg: legName, OrderID: f.OrderID,
				Side: f.Side.String(), Price: f.Price, Qty: f.Qty,
				Hit: f.Hit.String(), Realised: realised, TS: time.Now(),
			})
		}
		pub.PublishFill(&events.FillEvent{
			StrategyID: sid, Leg: legName, OrderID: f.OrderID,
			Side: f.Side.String(), Price: f.Price, Qty: f.Qty,
			Realised: realised, TS: time.Now().UnixMilli(),
		})
	}
}

func waitStopped(ctrl *pair.Controller, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctrl.State() == types.StateStopped {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func saveSnapshot(cfg *config.Config, ctrl *pair.Controller, log *logrus.Entry) {
	path := cfg.Strategy.SnapshotFile
	if path == "" {
		return
	}
	avgOri, pass1, agg2 := ctrl.DayRecord()
	rec := &snapshot.Record{
		StrategyID: cfg.Strategy.StrategyID,
		TwoDay:     0, // 日界翻转，今仓并入昨仓
		AvgSpread:  avgOri,
		BaseName1:  baseName(cfg.Strategy.Leg1),
		BaseName2:  baseName(cfg.Strategy.Leg2),
		Ytd1:       pass1,
		Ytd2:       agg2,
	}
	if err := snapshot.Save(path, rec); err != nil {
		log.WithError(err).Error("snapshot save failed")
		return
	}
	log.WithField("file", path).Info("snapshot saved")
}

func baseName(lc config.LegConfig) string {
	if lc.OrigBaseName != "" {
		return lc.OrigBaseName
	}
	return lc.Symbol
}
