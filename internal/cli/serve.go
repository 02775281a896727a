package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/internal/mockapi"
)

var (
	serveAddr     string
	serveUser     string
	servePassword string
	serveTTL      time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动本地模拟接口",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "监听地址")
	serveCmd.Flags().StringVar(&serveUser, "user", "demo", "可登录的用户名")
	serveCmd.Flags().StringVar(&servePassword, "password", "demo", "可登录的密码")
	serveCmd.Flags().DurationVar(&serveTTL, "ttl", time.Minute, "access token 有效期")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	api := mockapi.New(
		mockapi.WithUser(serveUser, servePassword),
		mockapi.WithTokenTTL(serveTTL),
		mockapi.WithLogger(logger.NewSlog(log)),
	)
	srv := &http.Server{Addr: serveAddr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("模拟接口已启动", "addr", serveAddr, "user", serveUser, "ttl", serveTTL)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("收到退出信号，正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stats := api.Stats()
	log.Info("模拟接口已关闭", "logins", stats.Logins, "refreshes", stats.Refreshes, "requests", stats.Requests, "rejected", stats.Rejected)
	return nil
}
