package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/rag-api-go/internal/logging"
	"github.com/54b3r/rag-api-go/internal/server"
	"github.com/54b3r/rag-api-go/internal/store"
	"github.com/54b3r/rag-api-go/internal/tracing"
)

// NewServeCmd constructs the `ragapi serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragapi HTTP server",
		Long: `Start the ragapi HTTP server on localhost.

The server exposes POST /ask/stream, which embeds the question, retrieves
the nearest chunks from Qdrant, and streams the generated answer back as
plain text. GET /health, GET /ready, and GET /metrics round out the
operational surface.

Examples:
  ragapi serve
  ragapi serve --port 9090
  MODEL_PROVIDER=azure ragapi serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Env (and therefore YAML config) fills in bind address and
			// port unless the flags were given explicitly.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("RAGAPI_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("RAGAPI_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			svc, index, cleanup, err := buildQueryService(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			// Open the request audit log. RAGAPI_AUDIT_DB overrides the
			// default path (~/.ragapi/requests.db). Set to "disabled" to
			// turn auditing off.
			var auditLog store.RequestLog
			dbPath := os.Getenv("RAGAPI_AUDIT_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("audit: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					al, alErr := store.Open(dbPath)
					if alErr != nil {
						log.Warn("audit: failed to open request log, disabling", slog.Any("error", alErr))
					} else {
						auditLog = al
						defer func() { _ = al.Close() }()
						log.Info("audit: request log opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("audit: disabled via RAGAPI_AUDIT_DB=disabled")
			}

			srv, err := server.New(svc, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   []server.Pinger{server.NewIndexPinger(index)},
				RateLimit: getEnvFloat("RAGAPI_RATE_LIMIT", 0),
				RateBurst: getEnvInt("RAGAPI_RATE_BURST", 0),
				APIKey:    os.Getenv("RAGAPI_API_KEY"),
				Audit:     auditLog,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")

	return cmd
}
