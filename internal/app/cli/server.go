package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gpsrag/internal/interface/httpapi"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	if port := cmd.String("port"); port != "" {
		cfg.Server.Port = port
	}

	server := httpapi.New(
		httpapi.Config{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			BodyLimit:      int(cfg.Server.MaxUploadBytes) + 64<<10,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		appCtx.Container.ChatService,
		appCtx.Container.IngestionService,
		httpapi.WithServerLogger(appCtx.Logger()),
	)
	return server.Run(ctx)
}
