// AngelaMos | 2026
// send.go

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/auth"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/dispatch"
)

var sendReq dispatch.Request

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Dispatch a newsletter without going through the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, db, logger, err := env(ctx)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // process exits next

		redis, err := core.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redis.Close() //nolint:errcheck // process exits next

		svc := dispatch.NewService(
			article.NewService(article.NewRepository(db.DB), logger),
			dispatch.NewRepository(db.DB),
			dispatch.NewSender(cfg.Email, logger),
			dispatch.NewRenderer(cfg.Site.BaseURL),
			dispatch.NewRedisLocker(redis.Client),
			cfg.Dispatch,
			logger,
		)

		res, err := svc.Dispatch(ctx, sendReq)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sent %d of %d\n", res.Sent, res.Recipients)
		return nil
	},
}

var pruneGrace time.Duration

var pruneTokensCmd = &cobra.Command{
	Use:   "prune-tokens",
	Short: "Delete refresh tokens that expired before the grace period",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, db, logger, err := env(ctx)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // process exits next

		svc := auth.NewService(auth.NewRepository(db.DB), nil, nil, nil, logger)
		n, err := svc.PruneExpired(ctx, pruneGrace)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d refresh tokens\n", n)
		return nil
	},
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendReq.NewsletterID, "newsletter", "", "newsletter id")
	f.StringVar(&sendReq.EmailType, "type", "full", "full, summary, test or welcome")
	f.StringVar(&sendReq.TestEmailAddress, "to", "", "recipient for test sends")
	f.StringVar(&sendReq.EmailSubject, "subject", "", "subject override")
	f.StringVar(&sendReq.SubscriberID, "subscriber", "", "subscriber id for welcome sends")

	pruneTokensCmd.Flags().DurationVar(&pruneGrace, "grace", 24*time.Hour, "keep tokens expired for less than this")
}
