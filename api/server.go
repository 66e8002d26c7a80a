package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tradesim/backtest"
	"tradesim/config"
	"tradesim/manager"
)

// Server HTTP API服务器
type Server struct {
	router      *gin.Engine
	corsOrigins []string

	mgr       *manager.RunManager
	store     manager.RunStore
	jwtSecret string
	port      int
}

// ServerConfig API服务器配置
type ServerConfig struct {
	Port        int
	CORSOrigins []string
	JWTSecret   string // 为空时关闭鉴权
}

// NewServer 创建API服务器并注册路由
func NewServer(cfg ServerConfig, mgr *manager.RunManager, store manager.RunStore) *Server {
	s := &Server{
		router:      gin.New(),
		corsOrigins: cfg.CORSOrigins,
		mgr:         mgr,
		store:       store,
		jwtSecret:   cfg.JWTSecret,
		port:        cfg.Port,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.POST("/backtest", s.handleSubmitBacktest)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleRunStatus)
		api.GET("/runs/:id/result", s.handleRunResult)
		api.DELETE("/runs/:id", s.handleRemoveRun)
		api.GET("/runs/:id/ws", s.handleRunWS)
	}
}

// Run 启动HTTP服务，阻塞直到出错
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Info().Str("addr", addr).Msg("api server listening")
	return s.router.Run(addr)
}

// corsMiddleware 按白名单回显Origin；不在白名单内则不设置CORS头
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// BacktestRequest 提交回测的请求体
type BacktestRequest struct {
	Symbol       string  `json:"symbol"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	RiskPerTrade float64 `json:"risk_per_trade"`
	Strategy     string  `json:"strategy"`
}

func (s *Server) handleSubmitBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	params := backtest.Params{
		Symbol:       req.Symbol,
		From:         req.From,
		To:           req.To,
		RiskPerTrade: req.RiskPerTrade,
		Strategy:     req.Strategy,
	}
	if params.Strategy == "" {
		params.Strategy = backtest.StrategySMACrossover
	}

	// 回测生命周期长于请求，不绑定请求context
	runID, err := s.mgr.Submit(context.Background(), params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"code":  "INVALID_PARAMS",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) handleListRuns(c *gin.Context) {
	payloads := s.mgr.List()
	seen := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		seen[p.RunID] = true
	}

	// 补充store中的历史运行（进程重启后内存为空）
	if s.store != nil {
		records, err := s.store.ListRuns()
		if err != nil {
			log.Warn().Err(err).Msg("failed to list persisted runs")
		} else {
			for _, rec := range records {
				if !seen[rec.ID] {
					payloads = append(payloads, recordPayload(rec))
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"runs": payloads})
}

func (s *Server) handleRunStatus(c *gin.Context) {
	runID := c.Param("id")

	if runner, ok := s.mgr.Get(runID); ok {
		c.JSON(http.StatusOK, runner.StatusPayload())
		return
	}

	rec, ok := s.lookupRecord(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "run not found",
			"code":  "RUN_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, recordPayload(rec))
}

func (s *Server) handleRunResult(c *gin.Context) {
	runID := c.Param("id")

	if runner, ok := s.mgr.Get(runID); ok {
		switch runner.Status() {
		case backtest.RunStateCompleted:
			c.JSON(http.StatusOK, runner.Result())
		case backtest.RunStateFailed:
			c.JSON(http.StatusNotFound, gin.H{
				"error": runner.Err().Error(),
				"code":  "RUN_FAILED",
			})
		default:
			// 结果尚未生成：404而不是202，202用于已接受但未完成的异步操作
			c.JSON(http.StatusNotFound, gin.H{
				"error": "result not ready yet",
				"code":  "RESULT_NOT_READY",
			})
		}
		return
	}

	rec, ok := s.lookupRecord(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "run not found",
			"code":  "RUN_NOT_FOUND",
		})
		return
	}
	switch {
	case rec.State == backtest.RunStateCompleted && rec.Result != nil:
		c.JSON(http.StatusOK, rec.Result)
	case rec.State == backtest.RunStateFailed:
		c.JSON(http.StatusNotFound, gin.H{
			"error": rec.LastError,
			"code":  "RUN_FAILED",
		})
	default:
		c.JSON(http.StatusNotFound, gin.H{
			"error": "result not ready yet",
			"code":  "RESULT_NOT_READY",
		})
	}
}

func (s *Server) handleRemoveRun(c *gin.Context) {
	runID := c.Param("id")
	if err := s.mgr.Remove(runID); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"code":  "RUN_ACTIVE",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) lookupRecord(runID string) (*config.RunRecord, bool) {
	if s.store == nil {
		return nil, false
	}
	rec, err := s.store.GetRun(runID)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// recordPayload 把落库记录转成与内存运行一致的状态快照
func recordPayload(rec *config.RunRecord) backtest.StatusPayload {
	payload := backtest.StatusPayload{
		RunID:     rec.ID,
		State:     rec.State,
		Symbol:    rec.Symbol,
		Strategy:  rec.Params.Strategy,
		LastError: rec.LastError,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.Result != nil {
		payload.NumTrades = len(rec.Result.Trades)
	}
	if !rec.FinishedAt.IsZero() {
		payload.FinishedAt = rec.FinishedAt.UTC().Format(time.RFC3339)
	}
	return payload
}
