// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"gridguard/app"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	app    *app.App
}

// NewServer 创建HTTP服务器
func NewServer(a *app.App) *Server {
	cfg := a.Config.HTTP
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(a),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		app: a,
	}
}

// NewHandler 注册所有路由并包装中间件链
func NewHandler(a *app.App) http.Handler {
	mux := http.NewServeMux()

	RegisterHandlers(mux, a)
	if a.Config.Dashboard.Enabled {
		RegisterDashboardRoutes(mux, a)
	}

	chain := Chain(
		// 恢复中间件最先执行，捕获panic
		RecoveryMiddleware(a.Log),
		RequestIDMiddleware,
		LoggerMiddleware(a.Log, a.Metrics),
		SecurityHeadersMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins: a.Config.HTTP.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		RequestSizeMiddleware(a.Config.HTTP.MaxUploadBytes),
	)
	return chain(mux)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.app.Log.Infow("starting HTTP server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.app.Log.Infow("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
