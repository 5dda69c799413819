package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pairarb-go/pkg/logx"
	"pairarb-go/pkg/market"
	"pairarb-go/pkg/types"
)

// Config 进程顶层配置
type Config struct {
	IPC      IPCConfig      `yaml:"ipc"`
	Strategy StrategyConfig `yaml:"strategy"`
	API      APIConfig      `yaml:"api"`
	Events   EventsConfig   `yaml:"events"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      logx.Config    `yaml:"log"`
}

// IPCConfig 共享内存段的 key 与容量。key 与外部网关约定，
// 容量只在 create_queues 自建（测试/回放）时生效。
type IPCConfig struct {
	MDKey       int32 `yaml:"md_shm_key"`
	ReqKey      int32 `yaml:"req_shm_key"`
	RespKey     int32 `yaml:"resp_shm_key"`
	TVarKey     int32 `yaml:"tvar_shm_key"` // 0 = 不用 t-var
	ClientStore int32 `yaml:"client_store_shm_key"`

	MDCapacity   uint32 `yaml:"md_capacity"`
	ReqCapacity  uint32 `yaml:"req_capacity"`
	RespCapacity uint32 `yaml:"resp_capacity"`

	FirstClientID int64 `yaml:"first_client_id"`
	CreateQueues  bool  `yaml:"create_queues"`
}

// LegConfig 单腿合约静态属性
type LegConfig struct {
	Symbol       string  `yaml:"symbol"`
	OrigBaseName string  `yaml:"orig_base_name"` // 快照列用的原始名
	Exchange     string  `yaml:"exchange"`
	Product      string  `yaml:"product"`
	Token        int32   `yaml:"token"`
	TickSize     float64 `yaml:"tick_size"`
	LotSize      float64 `yaml:"lot_size"`
	Multiplier   float64 `yaml:"multiplier"`
	SendInLots   bool    `yaml:"send_in_lots"`
	ExpiryDate   int32   `yaml:"expiry_date"`
	CostRate     float64 `yaml:"cost_rate"` // 按成交金额比例
	CostFlat     float64 `yaml:"cost_flat"` // 按手固定
}

// Instrument 按腿配置构建行情合约
func (lc *LegConfig) Instrument() *market.Instrument {
	mult := lc.Multiplier
	if mult == 0 {
		mult = 1
	}
	return &market.Instrument{
		Symbol:       lc.Symbol,
		OrigBaseName: lc.OrigBaseName,
		Exchange:     lc.Exchange,
		Product:      lc.Product,
		TickSize:     lc.TickSize,
		LotSize:      lc.LotSize,
		Multiplier:   mult,
		SendInLots:   lc.SendInLots,
		Token:        lc.Token,
		ExpiryDate:   lc.ExpiryDate,
		CostRate:     lc.CostRate,
		CostFlat:     lc.CostFlat,
	}
}

// StrategyConfig 策略参数
type StrategyConfig struct {
	StrategyID   int32               `yaml:"strategy_id"`
	Account      string              `yaml:"account"`
	Leg1         LegConfig           `yaml:"leg1"`
	Leg2         LegConfig           `yaml:"leg2"`
	Thresholds1  *types.ThresholdSet `yaml:"thresholds1"`
	Thresholds2  *types.ThresholdSet `yaml:"thresholds2"`
	SnapshotFile string              `yaml:"snapshot_file"`
	ModelFile    string              `yaml:"model_file"` // reload-thresholds 重读的源
	AutoActivate bool                `yaml:"auto_activate"`
}

// APIConfig REST 控制面
type APIConfig struct {
	Addr     string `yaml:"addr"` // e.g. ":9201"，空 = 不启动
	EnableWS bool   `yaml:"enable_ws"`
}

// EventsConfig NATS 事件外发
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"` // 空 = 关闭
}

// JournalConfig sqlite 成交流水
type JournalConfig struct {
	Path   string `yaml:"path"` // 空 = 关闭
	Buffer int    `yaml:"buffer"`
}

// Load 读取并校验 YAML 配置。阈值未给的键保持缺省值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	cfg.Strategy.Thresholds1 = types.NewThresholdSet()
	cfg.Strategy.Thresholds2 = types.NewThresholdSet()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IPC.MDKey == 0 {
		return fmt.Errorf("ipc.md_shm_key is required")
	}
	if c.IPC.ReqKey == 0 {
		return fmt.Errorf("ipc.req_shm_key is required")
	}
	if c.IPC.RespKey == 0 {
		return fmt.Errorf("ipc.resp_shm_key is required")
	}
	if c.IPC.ClientStore == 0 {
		return fmt.Errorf("ipc.client_store_shm_key is required")
	}
	if c.Strategy.StrategyID == 0 {
		return fmt.Errorf("strategy.strategy_id is required")
	}
	if c.Strategy.Leg1.Symbol == "" || c.Strategy.Leg2.Symbol == "" {
		return fmt.Errorf("strategy.leg1.symbol and strategy.leg2.symbol are required")
	}
	if c.Strategy.Leg1.Symbol == c.Strategy.Leg2.Symbol {
		return fmt.Errorf("the two legs must be different contracts")
	}
	if c.Strategy.Leg1.TickSize <= 0 || c.Strategy.Leg2.TickSize <= 0 {
		return fmt.Errorf("tick_size must be positive on both legs")
	}
	return nil
}
