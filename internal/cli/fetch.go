package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dnslin/sessionretry/core/logger"
)

var concurrency int

var postsCmd = &cobra.Command{
	Use:   "posts <userID>...",
	Short: "获取用户动态，多个用户时并发获取",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger.NewSlog(log))
		if err != nil {
			return err
		}
		defer a.Close()
		if len(args) == 1 {
			posts, err := a.service.Posts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		}
		out := make(map[string]any, len(args))
		failed := 0
		for _, r := range a.service.PostsForUsers(cmd.Context(), args, concurrency) {
			if r.Err != nil {
				failed++
				log.Warn("获取动态失败", "user", r.UserID, "error", r.Err)
				out[r.UserID] = map[string]string{"error": r.Err.Error()}
				continue
			}
			out[r.UserID] = r.Posts
		}
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d/%d 个用户获取失败", failed, len(args))
		}
		return nil
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <commentID>",
	Short: "获取评论",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger.NewSlog(log))
		if err != nil {
			return err
		}
		defer a.Close()
		comments, err := a.service.Comments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), comments)
	},
}

func init() {
	postsCmd.Flags().IntVar(&concurrency, "concurrency", 3, "多个用户时的最大并发数")
	rootCmd.AddCommand(postsCmd, commentsCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
