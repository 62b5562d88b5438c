package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"neucal/internal/calendar"
	"neucal/internal/config"
	"neucal/internal/feed"
	"neucal/internal/ics"
	appLog "neucal/internal/log"
	"neucal/internal/metrics"
	"neucal/internal/render"
	"neucal/internal/web"
)

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file when set.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}

	appLog.Init(os.Stderr, appLog.ParseFormat(conf.LogFormat), appLog.ParseLevel(conf.LogLevel))
	appLog.Info("neucal starting", "version", "0.1.0")

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"feed_url", conf.FeedURL,
		"timezone", loc.String(),
		"cache_ttl", conf.CacheTTL.Std(),
		"fetch_timeout", conf.FetchTimeout.Std(),
		"max_staleness", conf.MaxStaleness.Std(),
		"refresh", conf.RefreshCron,
		"expand_recurrences", conf.ExpandRecurrences,
		"once", flags.once,
	)

	m := metrics.New()
	fetcher := feed.NewHTTPFetcher(conf.FeedURL, feed.WithTimeout(conf.FetchTimeout.Std()))
	cache := feed.NewCache(fetcher,
		feed.WithTTL(conf.CacheTTL.Std()),
		feed.WithMaxStaleness(conf.MaxStaleness.Std()),
		feed.WithFetchTimeout(conf.FetchTimeout.Std()),
		feed.WithMetrics(m),
		feed.WithSource(fetcher.URL()),
	)
	svc := calendar.New(cache,
		calendar.WithLocation(loc),
		calendar.WithNormalizeOptions(ics.Options{Metrics: m}),
		calendar.WithRecurrenceExpansion(conf.ExpandRecurrences),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		if err := runOnce(ctx, svc); err != nil {
			appLog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	scheduler, err := startWarmup(cache, conf.RefreshCron)
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	srv := web.NewServer(conf, svc, cache, m)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		stopWarmup(scheduler)
		os.Exit(1)
	}

	stopWarmup(scheduler)
	appLog.Info("neucal exiting")
}

// runOnce fetches the feed and prints the upcoming week to stdout.
func runOnce(ctx context.Context, svc *calendar.Service) error {
	events, err := svc.Upcoming(ctx, calendar.DefaultUpcomingDays)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, render.Upcoming(events, calendar.DefaultUpcomingDays))
	return err
}

// startWarmup schedules periodic Document calls so tool calls find a fresh
// snapshot. It returns nil when schedule is empty.
func startWarmup(cache *feed.Cache, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := cache.Document(ctx); err != nil {
			appLog.Error("scheduled feed refresh failed", err)
			return
		}
		appLog.Debug("scheduled feed refresh done")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("feed warm-up scheduled", "refresh", schedule)
	return c, nil
}

func stopWarmup(c *cron.Cron) {
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/neucal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the feed, print the upcoming week and exit")

	flag.Parse()

	return cfg
}
