package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// サブコマンド名。
const (
	// CommandServe はストアフロントサーバーを起動する。引数なしの場合もこれを実行する。
	CommandServe = "serve"
	// CommandHealthcheck はヘルスチェックを実行する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck = "healthcheck"
)

// NewRootCommand はCLIのルートコマンドを生成する。logOutはサーバーのログ出力先。
func NewRootCommand(logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Server-rendered storefront for the shop API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logOut)
		},
	}

	serveCmd := &cobra.Command{
		Use:   CommandServe,
		Short: "Start the storefront HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), logOut)
		},
	}

	var port string
	healthCmd := &cobra.Command{
		Use:   CommandHealthcheck,
		Short: "Check that a local server answers /health",
		Args:  cobra.NoArgs,
		// 軽量サブコマンドのため、フル初期化をスキップする
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(cmd.Context(), "http://localhost:"+port)
		},
	}
	healthCmd.Flags().StringVar(&port, "port", defaultPort(), "port of the local server (defaults to SERVER_PORT)")

	root.AddCommand(serveCmd, healthCmd)
	return root
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでサーバーを停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// nilを渡すとcobraはos.Argsを読むため、空スライスに揃える
	if args == nil {
		args = []string{}
	}
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func serve(ctx context.Context, w io.Writer) error {
	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	return runServe(ctx, cfg, log)
}

func defaultPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
