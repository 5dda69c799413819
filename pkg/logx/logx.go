package logx

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`       // debug / info / warn / error
	OutputFile string `yaml:"output_file"` // 为空则只输出到控制台
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Async      bool   `yaml:"async"` // 热路径走异步缓冲写
	Console    bool   `yaml:"console"`
}

var (
	// Logger 全局日志实例
	Logger = logrus.New()
	mu     sync.Mutex
	sink   *asyncWriter
)

// Init 初始化日志系统。行情/回报线程上的日志最终落到
// lumberjack 轮转文件，Async 打开时经缓冲 goroutine 落盘，
// 队列轮询线程不会阻塞在文件 I/O 上。
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05.000",
	})

	var writers []io.Writer
	if cfg.Console || cfg.OutputFile == "" {
		writers = append(writers, os.Stdout)
	}

	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
			return err
		}
		var fileWriter io.Writer = &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		if cfg.Async {
			if sink != nil {
				sink.Stop()
			}
			sink = newAsyncWriter(fileWriter, 8192)
			fileWriter = sink
		}
		writers = append(writers, fileWriter)
	}

	Logger.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Flush 停止异步落盘 goroutine 并排空缓冲。进程退出前调用。
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		sink.Stop()
		sink = nil
	}
}

// Component 返回带组件字段的 Entry
func Component(name string) *logrus.Entry {
	return Logger.WithField("comp", name)
}

// asyncWriter 把写入转发到后台 goroutine。缓冲满直接丢行并计数，
// 不阻塞调用方。
type asyncWriter struct {
	ch      chan []byte
	done    chan struct{}
	stop    sync.Once
	dropped int64
	dropMu  sync.Mutex
}

func newAsyncWriter(dst io.Writer, depth int) *asyncWriter {
	w := &asyncWriter{
		ch:   make(chan []byte, depth),
		done: make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for line := range w.ch {
			dst.Write(line)
		}
	}()
	return w
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case w.ch <- line:
	default:
		w.dropMu.Lock()
		w.dropped++
		w.dropMu.Unlock()
	}
	return len(p), nil
}

// Dropped 返回因缓冲满被丢弃的日志行数
func (w *asyncWriter) Dropped() int64 {
	w.dropMu.Lock()
	defer w.dropMu.Unlock()
	return w.dropped
}

func (w *asyncWriter) Stop() {
	w.stop.Do(func() {
		close(w.ch)
		<-w.done
	})
}
