package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/clean"
	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
	"github.com/KaramelBytes/boxheat-cli/internal/server"
)

var (
	srvAddr     string
	srvLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pipeline sessions over HTTP",
	Long: `Starts an HTTP server. Upload a file to POST /api/sessions, re-run it with new
selections at POST /api/sessions/{id}/run, and fetch boxplot.png, heatmap.png and
processed.csv from the session. Idle sessions expire after session_ttl_min minutes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		strategy, err := clean.ParseStrategy(c.DefaultStrategy)
		if err != nil {
			return err
		}
		method, err := analysis.ParseMethod(c.DefaultMethod)
		if err != nil {
			return err
		}
		opts := []server.Option{
			server.WithLogLevel(firstNonEmpty(srvLogLevel, c.ServerLogLevel)),
			server.WithMaxUpload(int64(c.MaxUploadMB) << 20),
			server.WithSessionTTL(time.Duration(c.SessionTTLMin) * time.Minute),
			server.WithDefaults(strategy, method),
			server.WithRenderOptions(render.Options{Width: c.ChartWidthIn, Height: c.ChartHeightIn, Colormap: c.Colormap}),
		}
		if c.ImageAPIKey != "" {
			client := imagegen.NewClientWithEndpoint(c.ImageAPIKey, time.Duration(c.HTTPTimeoutSec)*time.Second, c.ImageAPIURL)
			opts = append(opts, server.WithImageClient(client, c.ImageStyle))
		} else {
			fmt.Fprintln(os.Stderr, "⚠ Warning: image_api_key is not set; /api/imagine serves demo images only")
		}
		if debug {
			opts = append(opts, server.WithDebug())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		addr := firstNonEmpty(srvAddr, c.ServerAddr)
		fmt.Printf("✓ Listening on http://%s\n", addr)
		return server.New(opts...).Start(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&srvLogLevel, "log-level", "", "debug|info|warn|error|off (default from config)")
}
