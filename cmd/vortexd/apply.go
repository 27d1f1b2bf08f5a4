package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/skyrelay/vortex/internal/config"
	"github.com/skyrelay/vortex/internal/event"
	"github.com/skyrelay/vortex/internal/ingress"
)

func applyCmd() *cobra.Command {
	var file string
	var deleteRouter bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a Router manifest, enqueuing it onto vortexd's ingress list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			manifest, err := config.ParseRouterManifest(data)
			if err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if redisAddr != "" {
				cfg.Redis.Addr = redisAddr
			}
			if redisPass != "" {
				cfg.Redis.Password = redisPass
			}
			if redisDB != 0 {
				cfg.Redis.DB = redisDB
			}

			tag := event.CREATE
			if deleteRouter {
				tag = event.DELETE
			}

			return submitManifest(cmd.Context(), cfg, manifest, tag)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a YAML Router manifest")
	cmd.Flags().BoolVar(&deleteRouter, "delete", false, "Submit a DELETE for this router instead of a CREATE")
	return cmd
}

func submitManifest(ctx context.Context, cfg *config.Config, manifest *config.RouterManifest, tag event.Tag) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	envelope := ingress.Envelope{
		EventID:    uuid.New().String(),
		RouterID:   manifest.Metadata.Name,
		TenantID:   manifest.Metadata.TenantID,
		CRUD:       string(tag),
		EnqueuedAt: time.Now().UnixNano(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := client.LPush(ctx, cfg.Ingress.ListKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue envelope: %w", err)
	}

	fmt.Printf("submitted %s for router %q (tenant %q)\n", tag, manifest.Metadata.Name, manifest.Metadata.TenantID)
	return nil
}
