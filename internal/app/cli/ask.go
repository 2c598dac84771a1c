package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	showSources := cmd.Bool("show-sources")
	includeGPS := cmd.Bool("gps-data")
	envFile := cmd.String("env")

	// 質問文の取得
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始", "question", question, "showSources", showSources)

	payload := appCtx.Container.ChatService.Chat(ctx, rag.Query{
		Text:           question,
		SessionID:      mo.None[string](),
		IncludeGPSData: includeGPS,
	})
	printAnswer(output(cmd), payload, showSources)

	slog.Info("質問応答が完了しました",
		"contextUsed", payload.ContextUsed,
		"fallback", payload.Fallback,
		"sources", len(payload.Sources),
	)
	return nil
}

func printAnswer(w io.Writer, payload rag.AnswerPayload, showSources bool) {
	fmt.Fprintln(w, payload.Response)

	if payload.Fallback {
		fmt.Fprintf(w, "\n(フォールバック応答: %s)\n", payload.FallbackReason)
	}

	// --show-sourcesフラグが指定されている場合、参照ソースも出力
	if showSources && len(payload.Sources) > 0 {
		fmt.Fprintln(w, "\n--- 参照ソース ---")
		for i, source := range payload.Sources {
			page := ""
			if source.Page != nil {
				page = fmt.Sprintf(" p.%d", *source.Page)
			}
			fmt.Fprintf(w, "[%d] %s%s スコア: %.4f\n", i+1, source.Filename, page, source.RelevanceScore)
		}
	}
}
