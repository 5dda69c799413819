package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"pairarb-go/pkg/types"
)

// ControlFile 旧版控制文件，单行空格分隔：
//
//	baseName modelFile exchange id execStrat startTime endTime secondName
type ControlFile struct {
	BaseName   string
	ModelFile  string
	Exchange   string
	ID         string
	ExecStrat  string
	StartTime  string
	EndTime    string
	SecondName string
}

// ParseControlFile 取第一个非注释行拆字段
func ParseControlFile(path string) (*ControlFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controlFile: read %s: %w", path, err)
	}

	var line string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "#") {
			line = l
			break
		}
	}
	if line == "" {
		return nil, fmt.Errorf("controlFile: %s: empty or comments only", path)
	}

	tokens := strings.Fields(line)
	if len(tokens) < 7 {
		return nil, fmt.Errorf("controlFile: %s: want >= 7 fields, got %d", path, len(tokens))
	}

	cf := &ControlFile{
		BaseName:  tokens[0],
		ModelFile: tokens[1],
		Exchange:  tokens[2],
		ID:        tokens[3],
		ExecStrat: tokens[4],
		StartTime: tokens[5],
		EndTime:   tokens[6],
	}
	if len(tokens) >= 8 {
		cf.SecondName = tokens[7]
	}
	return cf, nil
}

// BaseNameToSymbol 旧版 baseName 转合约代码：
// ag_F_3_SFE + yearPrefix "26" → ag2603
func BaseNameToSymbol(baseName, yearPrefix string) (string, error) {
	parts := strings.Split(baseName, "_")
	if len(parts) < 4 || parts[1] != "F" {
		return "", fmt.Errorf("baseName %q: want <product>_F_<month>_<exchange>", baseName)
	}
	product := strings.ToLower(parts[0])
	month := parts[2]
	if len(month) == 1 {
		month = "0" + month
	}
	return product + yearPrefix + month, nil
}

// ParseModelFile 旧版模型文件：KEY VALUE 两列，# 开头跳过
func ParseModelFile(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modelFile: open %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]float64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(tokens[1], 64)
		if err != nil {
			continue
		}
		out[strings.ToUpper(tokens[0])] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("modelFile: read %s: %w", path, err)
	}
	return out, nil
}

// ApplyModel 把旧版 UPPER_CASE 键写进参数集。
// PLACE/REMOVE 基准键同时作用于买卖两侧，未知键忽略。
func ApplyModel(ts *types.ThresholdSet, m map[string]float64) {
	for key, v := range m {
		switch key {
		case "BEGIN_PLACE":
			ts.BidPlaceBegin, ts.AskPlaceBegin = v, v
		case "LONG_PLACE":
			ts.BidPlaceLong, ts.AskPlaceLong = v, v
		case "SHORT_PLACE":
			ts.BidPlaceShort, ts.AskPlaceShort = v, v
		case "BEGIN_REMOVE":
			ts.BidRemoveBegin, ts.AskRemoveBegin = v, v
		case "LONG_REMOVE":
			ts.BidRemoveLong, ts.AskRemoveLong = v, v
		case "SHORT_REMOVE":
			ts.BidRemoveShort, ts.AskRemoveShort = v, v
		case "SIZE":
			ts.OrderSize = int64(v)
		case "MAX_SIZE":
			ts.MaxPos = int64(v)
		case "ALPHA":
			ts.SpreadAlpha = v
		case "AVG_SPREAD_AWAY":
			ts.AvgSpreadAway = int(v)
		case "SLOP":
			ts.Slop = int(v)
		case "AGG_WINDOW_MS":
			ts.AggWindowMs = int64(v)
		case "MAX_AGG_REPEAT":
			ts.MaxAggRepeat = int(v)
		case "MAX_HEDGE_QTY":
			ts.MaxHedgeQty = int64(v)
		case "HEDGE_RATIO":
			ts.HedgeRatio = int64(v)
		case "PRICE_RATIO":
			ts.PriceRatio = v
		case "MAX_QUOTE_LEVEL":
			ts.MaxQuoteLevel = int(v)
		case "SUPPORTING_ORDERS":
			ts.SupportingOrders = int(v)
		case "MAX_OS_ORDER":
			ts.MaxOSOrder = int(v)
		case "USE_INVISIBLE_BOOK":
			ts.UseInvisibleBook = v != 0
		case "STOP_LOSS":
			ts.StopLoss = v
		case "MAX_LOSS":
			ts.MaxLoss = v
		case "UPNL_LOSS":
			ts.UPNLLoss = v
		case "MAX_DRAWDOWN":
			ts.MaxDrawdown = v
		case "REJECT_LIMIT":
			ts.RejectLimit = int(v)
		case "STOP_LOSS_PAUSE_S":
			ts.StopLossPauseS = int64(v)
		}
	}
}

// LoadModelThresholds 读模型文件并套在缺省参数集上。
// reload-thresholds 指令也走这里。
func LoadModelThresholds(path string) (*types.ThresholdSet, error) {
	m, err := ParseModelFile(path)
	if err != nil {
		return nil, err
	}
	ts := types.NewThresholdSet()
	ApplyModel(ts, m)
	return ts, nil
}

// ApplyLegacy 把旧版控制文件 + 模型文件合并进运行时配置。
// yearPrefix 是合约年份前两位（"26" → ag2603）。
func (c *Config) ApplyLegacy(controlPath, yearPrefix string) error {
	cf, err := ParseControlFile(controlPath)
	if err != nil {
		return err
	}

	if sym, err := BaseNameToSymbol(cf.BaseName, yearPrefix); err == nil {
		c.Strategy.Leg1.Symbol = sym
		c.Strategy.Leg1.OrigBaseName = cf.BaseName
		c.Strategy.Leg1.Exchange = cf.Exchange
	}
	if cf.SecondName != "" {
		if sym, err := BaseNameToSymbol(cf.SecondName, yearPrefix); err == nil {
			c.Strategy.Leg2.Symbol = sym
			c.Strategy.Leg2.OrigBaseName = cf.SecondName
			c.Strategy.Leg2.Exchange = cf.Exchange
		}
	}
	if id, err := strconv.ParseInt(cf.ID, 10, 32); err == nil && c.Strategy.StrategyID == 0 {
		c.Strategy.StrategyID = int32(id)
	}

	if cf.ModelFile != "" {
		c.Strategy.ModelFile = cf.ModelFile
		m, err := ParseModelFile(cf.ModelFile)
		if err != nil {
			return err
		}
		if c.Strategy.Thresholds1 == nil {
			c.Strategy.Thresholds1 = types.NewThresholdSet()
		}
		if c.Strategy.Thresholds2 == nil {
			c.Strategy.Thresholds2 = types.NewThresholdSet()
		}
		ApplyModel(c.Strategy.Thresholds1, m)
		ApplyModel(c.Strategy.Thresholds2, m)
	}
	return nil
}
