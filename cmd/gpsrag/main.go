package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/gpsrag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 設定読み込み前のログ出力用
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	app := &cli.Command{
		Name:  "gpsrag",
		Usage: "GPS/GNSS ドキュメント向け RAG チャットアシスタント",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "HTTP API サーバーを起動",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "port",
						Usage: "待ち受けポート（省略時は PORT 環境変数）",
					},
				},
				Action: appcli.ServerStartAction,
			},
			{
				Name:  "ingest",
				Usage: "ドキュメント取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:      "file",
						Usage:     "PDF またはテキストファイルを 1 件取り込む",
						ArgsUsage: "<path>",
						Flags:     []cli.Flag{envFlag()},
						Action:    appcli.IngestFileAction,
					},
					{
						Name:      "dir",
						Usage:     "ディレクトリ配下のドキュメントを一括で取り込む",
						ArgsUsage: "<path>",
						Flags:     []cli.Flag{envFlag()},
						Action:    appcli.IngestDirAction,
					},
					{
						Name:  "git",
						Usage: "Git リポジトリのドキュメントを一括で取り込む",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "url",
								Usage:    "GitリポジトリURL",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "ref",
								Usage: "ブランチ名・タグ名・コミットハッシュ（省略時は GIT_DEFAULT_BRANCH）",
							},
						},
						Action: appcli.IngestGitAction,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "質問に回答する",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照ソースを表示",
					},
					&cli.BoolFlag{
						Name:  "gps-data",
						Usage: "GPS データを含む質問として扱う",
					},
				},
				Action: appcli.AskAction,
			},
			{
				Name:  "document",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "ドキュメント一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.DocumentListAction,
					},
					{
						Name:  "delete",
						Usage: "ドキュメントとチャンクを削除",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: appcli.DocumentDeleteAction,
					},
				},
			},
			{
				Name:      "chunk",
				Usage:     "ファイルをチャンク分割して表示（デバッグ用）",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "チャンクモード（paragraph または window）",
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "チャンクサイズ（文字数）",
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "オーバーラップ（文字数）",
					},
				},
				Action: appcli.ChunkAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}
