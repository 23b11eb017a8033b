package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"estate_tracker/internal/api"
	"estate_tracker/internal/scheduler"
)

var (
	enqueueAfterCrawl bool
	enqueueSince      string
)

func init() {
	crawlCmd.Flags().BoolVar(&enqueueAfterCrawl, "enqueue", false, "build the notification queue after the crawl")
	enqueueCmd.Flags().StringVar(&enqueueSince, "since", "", "consider listings new or changed since this date (YYYY-MM-DD, default today)")
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl of the configured listing source",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		stats, err := a.crawl.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pages=%d listings=%d new=%d changed=%d unchanged=%d dropped=%d failed=%d\n",
			stats.Pages, stats.Listings, stats.New, stats.Changed, stats.Unchanged, stats.Dropped, stats.Failed)
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue notifications for listings matching user preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		since := time.Now().UTC()
		if enqueueSince != "" {
			t, err := time.Parse(time.DateOnly, enqueueSince)
			if err != nil {
				return fmt.Errorf("parse --since: %w", err)
			}
			since = t
		}
		y, m, d := since.Date()
		since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		stats, err := a.queue.Build(ctx, since, a.cfg.Queue.SiteFilter)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "users=%d candidates=%d queued=%d already_queued=%d rejected=%d failed=%d\n",
			stats.Users, stats.Candidates, stats.Queued, stats.AlreadyQueued, stats.Rejected, stats.Failed)
		return nil
	},
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send one batch of queued notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		stats, err := a.dispatch.Dispatch(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d sent=%d skipped=%d failed=%d\n",
			stats.Fetched, stats.Sent, stats.Skipped, stats.Failed)
		return nil
	},
}

var checkRemovedCmd = &cobra.Command{
	Use:   "check-removed",
	Short: "Mark active listings whose page is gone as removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		stats, err := a.removal.Check(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked=%d removed=%d failed=%d\n", stats.Checked, stats.Removed, stats.Failed)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run crawl, dispatch and removal schedules and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		server := api.NewServer(a.users, a.changes, a.conn, a.logger, a.cfg.HTTP.Addr)

		crawlJob := scheduler.JobFunc(func(ctx context.Context) error {
			_, err := a.crawl.Run(ctx)
			return err
		})
		dispatchJob := scheduler.JobFunc(func(ctx context.Context) error {
			_, err := a.dispatch.Dispatch(ctx)
			return err
		})
		removalJob := scheduler.JobFunc(func(ctx context.Context) error {
			_, err := a.removal.Check(ctx)
			return err
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return scheduler.NewScheduler("crawl", crawlJob, a.cfg.Crawl.Interval, a.cfg.Crawl.Timeout, a.logger).Start(gctx)
		})
		g.Go(func() error {
			return scheduler.NewScheduler("dispatch", dispatchJob, a.cfg.Dispatch.Interval, a.cfg.Dispatch.Interval, a.logger).Start(gctx)
		})
		g.Go(func() error {
			return scheduler.NewScheduler("removal", removalJob, a.cfg.Removal.Interval, a.cfg.Removal.Interval, a.logger).Start(gctx)
		})
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			return server.Shutdown(shutdownCtx)
		})

		a.logger.Info("estate tracker started",
			"crawl_interval", a.cfg.Crawl.Interval,
			"dispatch_interval", a.cfg.Dispatch.Interval,
			"removal_interval", a.cfg.Removal.Interval,
			"http_addr", a.cfg.HTTP.Addr,
		)

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
