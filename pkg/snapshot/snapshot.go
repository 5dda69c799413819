package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pairarb-go/pkg/types"
)

// Record 日界快照一行。重启只需要这些字段：
// 今仓净变动、价差 EMA 种子、两腿原始名、两腿昨仓。
type Record struct {
	StrategyID int32
	TwoDay     int64   // 列 "2day"
	AvgSpread  float64 // 列 "avgPx"
	BaseName1  string  // 列 "m_origbaseName1"
	BaseName2  string  // 列 "m_origbaseName2"
	Ytd1       int64   // 腿1昨日被动净仓
	Ytd2       int64   // 腿2昨日主动净仓
}

// 列名和顺序对外冻结，外部工具按 header 索引取列
const header = "StrategyID 2day avgPx m_origbaseName1 m_origbaseName2 ytd1 ytd2 "

// Load 按 strategyID 扫描快照文件。文件不存在或没有匹配行都按零值处理，
// 其余读取失败返回 SNAPSHOT_IO 类错误，调用方记一条日志后照常启动。
func Load(path string, strategyID int32) (*Record, error) {
	zero := &Record{StrategyID: strategyID}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return zero, types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("read %s: %w", path, err))
	}
	if len(lines) < 2 {
		return zero, nil
	}

	headers := strings.Fields(lines[0])

	for _, dataLine := range lines[1:] {
		tokens := strings.Fields(dataLine)
		if len(tokens) == 0 {
			continue
		}
		sid, err := strconv.ParseInt(tokens[0], 10, 32)
		if err != nil || int32(sid) != strategyID {
			continue
		}

		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(tokens) {
				row[h] = tokens[i]
			}
		}

		rec := &Record{StrategyID: strategyID}
		if v, ok := row["2day"]; ok {
			rec.TwoDay, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := row["avgPx"]; ok {
			rec.AvgSpread, _ = strconv.ParseFloat(v, 64)
		}
		rec.BaseName1 = row["m_origbaseName1"]
		rec.BaseName2 = row["m_origbaseName2"]
		if v, ok := row["ytd1"]; ok {
			rec.Ytd1, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := row["ytd2"]; ok {
			rec.Ytd2, _ = strconv.ParseInt(v, 10, 64)
		}
		return rec, nil
	}

	return zero, nil
}

// Save 重写整个快照文件：其他策略的行原样保留，本策略的行替换或追加。
// 先写临时文件再 rename，避免中途崩溃留下半截文件。
func Save(path string, rec *Record) error {
	others, err := loadOtherRows(path, rec.StrategyID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, line := range others {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(formatRow(rec))
	b.WriteByte('\n')

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("mkdir for %s: %w", path, err))
	}
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("write %s: %w", tmp, err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("rename %s: %w", tmp, err))
	}
	return nil
}

func formatRow(rec *Record) string {
	return fmt.Sprintf("%d %d %s %s %s %d %d",
		rec.StrategyID, rec.TwoDay,
		strconv.FormatFloat(rec.AvgSpread, 'f', 6, 64),
		rec.BaseName1, rec.BaseName2, rec.Ytd1, rec.Ytd2)
}

// loadOtherRows 把文件里不属于 strategyID 的数据行原样取出来
func loadOtherRows(path string, strategyID int32) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewKindError(types.ErrSnapshotIO, fmt.Errorf("read %s: %w", path, err))
	}

	var out []string
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		sid, err := strconv.ParseInt(tokens[0], 10, 32)
		if err == nil && int32(sid) == strategyID {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
