package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedforge/activitylog/internal/app"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "activitylog",
		Usage: "Viewer-personalized activity log API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./activitylog.sqlite",
				Usage: "SQLite file path",
			},
			&cli.DurationFlag{
				Name:    "render-ttl",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("ACTIVITYLOG_RENDER_TTL"),
				Usage:   "TTL for cached rendered descriptions",
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Value:   time.Minute,
				Sources: cli.EnvVars("ACTIVITYLOG_SWEEP_INTERVAL"),
				Usage:   "Interval between expired render-cache purge passes",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("ACTIVITYLOG_WEBHOOK_URL"),
				Usage:   "Activity event webhook target URL (push delivery to external receivers)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("ACTIVITYLOG_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.BoolFlag{
				Name:    "memory-render-cache",
				Sources: cli.EnvVars("ACTIVITYLOG_MEMORY_RENDER_CACHE"),
				Usage:   "Keep rendered descriptions in process memory instead of sqlite",
			},
			&cli.StringSliceFlag{
				Name:    "entity-table",
				Sources: cli.EnvVars("ACTIVITYLOG_ENTITY_TABLES"),
				Usage:   "Entity type mapping, repeatable: type=table[:keycol[:namecol]]",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:              c.String("addr"),
				DBPath:            c.String("db-path"),
				RenderTTL:         c.Duration("render-ttl"),
				SweepInterval:     c.Duration("sweep-interval"),
				WebhookURL:        c.String("webhook-url"),
				WebhookSecret:     c.String("webhook-secret"),
				MemoryRenderCache: c.Bool("memory-render-cache"),
				EntityTables:      c.StringSlice("entity-table"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
