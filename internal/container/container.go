package container

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wb/parser/internal/client"
	"wb/parser/internal/config"
	"wb/parser/internal/notify"
	"wb/parser/internal/queue"
	"wb/parser/internal/report"
	"wb/parser/internal/resolver"
	"wb/parser/internal/scraper"
	"wb/parser/internal/service"
	"wb/parser/internal/state"
	"wb/parser/internal/transport"

	"github.com/benbjohnson/clock"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config   *config.Config
	Catalog  client.CatalogClient
	Enricher client.Enricher
	Queue    *queue.TaskQueue
	Registry state.SessionRegistry
	Service  *service.Service

	bot *transport.Bot
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	clk := clock.New()

	catalogClient := client.NewCatalogClient(cfg.Catalog)
	enricher := client.NewEnrichmentClient(cfg.Enrichment, clk)
	taskQueue := queue.New(cfg.Queue.MaxConcurrent, cfg.Queue.Spacing(), clk)
	registry := state.NewSessionRegistry()
	resolverFactory := resolver.Factory(func() resolver.Resolver {
		return resolver.NewCategoryResolver(catalogClient)
	})
	exporter := report.NewXLSXExporter(cfg.Export.Dir)

	var (
		api       *tgbotapi.BotAPI
		progress  notify.ProgressSink
		messages  notify.MessageSink
		deliverer report.Deliverer
	)

	if cfg.Telegram.Token != "" {
		var err error
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		log.Infof("✅ Authorized as Telegram bot @%s", api.Self.UserName)

		sink := notify.NewTelegramSink(api)
		progress = sink
		messages = sink
		deliverer = sink
	} else {
		log.Warn("⚠️ No Telegram token configured, progress and reports go to the log")
		sink := notify.LogSink{}
		progress = sink
		messages = sink
		deliverer = report.LogDeliverer{}
	}

	pageScraper := scraper.NewPageScraper(catalogClient, taskQueue, progress, cfg.Scraper, clk)

	svc := service.NewService(
		registry,
		resolverFactory,
		pageScraper,
		enricher,
		exporter,
		deliverer,
		progress,
		messages,
		cfg.Scraper.MaxPages,
	)

	container := &Container{
		Config:   cfg,
		Catalog:  catalogClient,
		Enricher: enricher,
		Queue:    taskQueue,
		Registry: registry,
		Service:  svc,
	}

	if api != nil {
		container.bot = transport.NewBot(api, svc, cfg.Telegram.PollTimeout)
	}

	return container, nil
}

// Run serves the bot transport until the context ends
func (c *Container) Run(ctx context.Context) error {
	if c.bot == nil {
		return fmt.Errorf("no Telegram token configured, nothing to serve")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.bot.Run(ctx)
	})
	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")
	c.Queue.Close()
	log.Info("Container shut down successfully")
	return nil
}
