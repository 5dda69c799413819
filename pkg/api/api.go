// Package api 运行中控制面：状态查询、激活/去激活/清仓/参数重载。
// 命令走单 worker 队列，和策略锁解耦；队列满直接 503。
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pairarb-go/pkg/config"
	"pairarb-go/pkg/pair"
	"pairarb-go/pkg/types"
)

var errCommandQueueFull = types.Kindf(types.ErrQueueFull, "command queue full")

// Server REST + WS 控制面
type Server struct {
	ctrl      *pair.Controller
	modelFile string

	cmds chan func()
	srv  *http.Server
	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup

	enableWS bool
	log      *logrus.Entry
}

// New 构建控制面。modelFile 是 reload-thresholds 重读的参数文件，空 = 禁用该接口。
func New(cfg config.APIConfig, ctrl *pair.Controller, modelFile string, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		ctrl:      ctrl,
		modelFile: modelFile,
		cmds:      make(chan func(), 16),
		done:      make(chan struct{}),
		enableWS:  cfg.EnableWS,
		log:       log.WithField("comp", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.routes(r)

	s.srv = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/status", s.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	st := r.Group("/strategy")
	st.POST("/activate", s.handleActivate)
	st.POST("/deactivate", s.handleDeactivate)
	st.POST("/squareoff", s.handleSquareoff)
	st.POST("/reload-thresholds", s.handleReload)

	if s.enableWS {
		r.GET("/ws", s.handleWS)
	}
}

// Start 起命令 worker 和 HTTP 监听
func (s *Server) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("control api listen failed")
		}
	}()
	s.log.WithField("addr", s.srv.Addr).Info("control api up")
}

// Shutdown 停监听、收 worker
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		err = s.srv.Shutdown(ctx)
		close(s.done)
		s.wg.Wait()
	})
	return err
}

func (s *Server) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.cmds:
			fn()
		}
	}
}

// do 命令入队并等结果。入不了队说明控制面积压，上游拿 503 重试。
func (s *Server) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- func() { reply <- fn() }:
	default:
		return errCommandQueueFull
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return errors.New("api shutting down")
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleActivate(c *gin.Context) {
	s.command(c, func() error {
		if !s.ctrl.Activate() {
			return errors.New("not in RUNNING state")
		}
		return nil
	})
}

func (s *Server) handleDeactivate(c *gin.Context) {
	s.command(c, func() error {
		if !s.ctrl.Deactivate() {
			return errors.New("not in ACTIVE state")
		}
		return nil
	})
}

func (s *Server) handleSquareoff(c *gin.Context) {
	s.command(c, func() error {
		s.ctrl.Squareoff("api")
		return nil
	})
}

func (s *Server) handleReload(c *gin.Context) {
	if s.modelFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no model file configured"})
		return
	}
	s.command(c, func() error {
		ts, err := config.LoadModelThresholds(s.modelFile)
		if err != nil {
			return err
		}
		s.ctrl.ReloadThresholds(ts, ts)
		return nil
	})
}

// command 执行命令并按错误类型映射状态码
func (s *Server) command(c *gin.Context, fn func() error) {
	err := s.do(fn)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"state": s.ctrl.State().String()})
	case errors.Is(err, errCommandQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": s.ctrl.State().String()})
	}
}
