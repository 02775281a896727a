// Package cli 实现 feedctl 命令行。
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dnslin/sessionretry/core/config"
	"github.com/dnslin/sessionretry/core/logger"
)

var (
	cfgPath string
	envFile string
	isDebug bool

	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "feedctl",
	Short:         "会话自动刷新的动态/评论客户端",
	Long:          `feedctl 调用动态与评论接口，会话过期时自动刷新并重试一次。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// Execute 运行根命令。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log == nil {
			log = logger.NewTint(os.Stderr, slog.LevelInfo)
		}
		log.Error("feedctl 执行失败", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径，为空时使用默认配置")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "额外加载的 .env 文件")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "输出调试日志")
}

func setup(cmd *cobra.Command) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadEnv(files...); err != nil {
		return err
	}
	loaded, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	level := logger.ParseLevel(loaded.Log.Level)
	if isDebug {
		level = slog.LevelDebug
	}
	cfg = loaded
	log = logger.NewTint(cmd.ErrOrStderr(), level)
	slog.SetDefault(log)
	return nil
}
