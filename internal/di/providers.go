package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
	"PolySentry/internal/handler/api"
	internalrepo "PolySentry/internal/repository"
	"PolySentry/internal/service/analysis"
	"PolySentry/internal/service/notify"
	"PolySentry/internal/service/polymarket"
	"PolySentry/internal/services/risk"
	"PolySentry/internal/services/scoring"
	"PolySentry/internal/usecase"
	pkgcache "PolySentry/pkg/cache"
	pkgch "PolySentry/pkg/clickhouse"
	"PolySentry/pkg/config"
	xhttp "PolySentry/pkg/http"
	pkgkafka "PolySentry/pkg/kafka"
	applogger "PolySentry/pkg/logger"
	"PolySentry/pkg/metrics"
	"PolySentry/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideLedger creates the Redis ledger, or an in-memory fallback when
// Redis is disabled.
func ProvideLedger(cfg *config.Config) (repository.Ledger, error) {
	if !cfg.Redis.Enabled {
		return internalrepo.NewMemoryLedger(), nil
	}
	client, err := pkgcache.NewRedisClient(
		pkgcache.WithAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgcache.WithCredentials(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return internalrepo.NewRedisLedger(client), nil
}

// ProvideArchive creates the ClickHouse archive with its schema applied,
// or an in-memory fallback when ClickHouse is disabled.
func ProvideArchive(cfg *config.Config) (repository.Archive, error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NewMemoryArchive(), nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewClickHouseArchive(client.DB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return archive, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher publishes decisions to the audit topic; a no-op
// publisher stands in when Kafka is not configured.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	if producer == nil {
		return internalrepo.NopAuditPublisher{}
	}
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideKafkaConsumer creates the resolutions consumer, or nil when no
// brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideStream creates the market trade stream.
func ProvideStream(cfg *config.Config) repository.TradeStream {
	return polymarket.NewStream(
		cfg.Stream.URL,
		cfg.Stream.Markets,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideResolver creates the wallet/market metadata resolver.
func ProvideResolver(cfg *config.Config) repository.MetadataResolver {
	return polymarket.NewGamma(polymarket.GammaConfig{
		BaseURL:    cfg.Gamma.BaseURL,
		Timeout:    cfg.Gamma.Timeout,
		CacheTTL:   cfg.Gamma.CacheTTL,
		MaxRPS:     cfg.Gamma.MaxRPS,
		RankWindow: cfg.Gamma.RankWindow,
	})
}

// ProvideAnalyzer creates the escalation analyzer. Without a configured
// backend escalation is disabled and scores decide alone.
func ProvideAnalyzer(cfg *config.Config) repository.Analyzer {
	if cfg.Analysis.BaseURL == "" || cfg.Analysis.APIKey == "" {
		return analysis.Nop{}
	}
	return analysis.NewClient(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		APIKey:  cfg.Analysis.APIKey,
		Model:   cfg.Analysis.Model,
		Timeout: cfg.Analysis.Timeout,
	})
}

// ProvideExecutor creates the order executor.
func ProvideExecutor(cfg *config.Config) repository.Executor {
	return polymarket.NewCLOB(polymarket.CLOBConfig{
		BaseURL: cfg.Clob.BaseURL,
		APIKey:  cfg.Clob.APIKey,
		Timeout: cfg.Clob.Timeout,
	})
}

// ProvideNotifier creates the Telegram notifier, or a no-op when the
// bot is not configured.
func ProvideNotifier(cfg *config.Config) repository.Notifier {
	if cfg.Notify.BotToken == "" || cfg.Notify.ChatID == "" {
		return notify.Nop{}
	}
	return notify.NewTelegram(notify.Config{
		BotToken: cfg.Notify.BotToken,
		ChatID:   cfg.Notify.ChatID,
		Timeout:  cfg.Notify.Timeout,
	})
}

// ProvideEngine creates the scoring engine.
func ProvideEngine(cfg *config.Config) *scoring.Engine {
	return scoring.NewEngine(scoring.Config{
		WhaleThreshold:   cfg.Detection.WhaleThreshold,
		NewWalletDays:    cfg.Detection.NewWalletDays,
		NicheRank:        cfg.Detection.NicheRank,
		PriceLowExtreme:  cfg.Detection.PriceLowExtreme,
		PriceHighExtreme: cfg.Detection.PriceHighExtreme,
		ClusterSize:      cfg.Detection.ClusterSize,
	})
}

// ProvideWindow creates the cluster observation window.
func ProvideWindow(cfg *config.Config) *scoring.MarketWindow {
	return scoring.NewMarketWindow(cfg.Detection.ClusterWindow)
}

// RolloverRelay breaks the construction cycle between the risk manager
// (which fires the rollover hook) and the tracker (which handles it and
// also feeds settled P/L back into the manager).
type RolloverRelay struct {
	mu sync.Mutex
	fn func(prev models.RiskState)
}

// Bind sets the hook target. Safe to call after the manager started.
func (r *RolloverRelay) Bind(fn func(prev models.RiskState)) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

// Fire forwards a rollover to the bound target.
func (r *RolloverRelay) Fire(prev models.RiskState) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(prev)
	}
}

// ProvideRolloverRelay creates the relay shared by manager and tracker.
func ProvideRolloverRelay() *RolloverRelay {
	return &RolloverRelay{}
}

// ProvideRiskManager creates the risk manager with today's state restored
// from the ledger.
func ProvideRiskManager(cfg *config.Config, ledger repository.Ledger, rec repository.Metrics, relay *RolloverRelay, log *applogger.Logger) (*risk.Manager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return risk.NewManager(ctx,
		risk.Config{
			MaxDailyBets:  cfg.Risk.MaxDailyBets,
			MaxDailyWager: cfg.Risk.MaxDailyWager,
			MaxDailyLoss:  cfg.Risk.MaxDailyLoss,
		},
		ledger,
		cfg.Location(),
		log,
		risk.WithMetrics(rec),
		risk.WithRolloverHook(relay.Fire),
	)
}

// ProvideTracker creates the performance tracker and binds it to the
// rollover relay.
func ProvideTracker(cfg *config.Config, ledger repository.Ledger, archive repository.Archive, rm *risk.Manager, notifier repository.Notifier, rec repository.Metrics, relay *RolloverRelay, log *applogger.Logger) *usecase.Tracker {
	t := usecase.NewTracker(cfg.Location(), ledger, archive, rm, notifier, rec, log)
	relay.Bind(t.RolloverReport)
	return t
}

// ProvideNormalizer creates the event normalizer.
func ProvideNormalizer(cfg *config.Config) *usecase.Normalizer {
	return usecase.NewNormalizer(cfg.Decision.DedupTTL)
}

// ProvideResolutionHandler registers the handler for the resolutions topic.
func ProvideResolutionHandler(cfg *config.Config, tracker *usecase.Tracker, log *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewResolutionHandler(cfg.Kafka.ResolutionsTopic, tracker, log)
}

// ProvideOrchestrator assembles the pipeline.
func ProvideOrchestrator(
	cfg *config.Config,
	stream repository.TradeStream,
	resolver repository.MetadataResolver,
	analyzer repository.Analyzer,
	executor repository.Executor,
	notifier repository.Notifier,
	ledger repository.Ledger,
	archive repository.Archive,
	audit repository.AuditPublisher,
	rec repository.Metrics,
	rm *risk.Manager,
	engine *scoring.Engine,
	window *scoring.MarketWindow,
	tracker *usecase.Tracker,
	log *applogger.Logger,
) *usecase.Orchestrator {
	halt := func(reason string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rm.Halt(ctx, reason); err != nil {
			log.Error("halt persistence failed", applogger.Error(err))
		}
		if err := notifier.NotifyHalt(ctx, reason); err != nil {
			log.Warn("halt notification failed", applogger.Error(err))
		}
	}
	return usecase.NewOrchestrator(
		usecase.OrchestratorConfig{
			Mode:              cfg.Mode,
			WhaleThreshold:    cfg.Detection.WhaleThreshold,
			EscalationLow:     cfg.Decision.EscalationLow,
			EscalationHigh:    cfg.Decision.EscalationHigh,
			ApproveScore:      cfg.Decision.ApproveScore,
			ApproveConfidence: cfg.Decision.ApproveConfidence,
			EventDeadline:     cfg.Decision.EventDeadline,
			Stake:             cfg.Risk.Stake,
		},
		usecase.OrchestratorDeps{
			Stream:   stream,
			Resolver: resolver,
			Analyzer: analyzer,
			Executor: executor,
			Notifier: notifier,
			Ledger:   ledger,
			Archive:  archive,
			Audit:    audit,
			Metrics:  rec,
			Risk:     rm,
			Engine:   engine,
			Window:   window,
			Tracker:  tracker,
			Logger:   log,
			Halt:     halt,
		},
	)
}

// ProvideOpsHandler creates the HTTP read API handler.
func ProvideOpsHandler(log *applogger.Logger, tracker *usecase.Tracker, rm *risk.Manager, archive repository.Archive, ledger repository.Ledger) xhttp.Handler {
	return api.NewOpsHandler(log, tracker, rm, archive, ledger)
}

// ProvideHTTPServer creates the Echo server with routes registered.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler) *xhttp.Server {
	return xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.Orchestrator,
	normalizer *usecase.Normalizer,
	consumer *pkgkafka.Consumer,
	resolutions pkgkafka.MessageHandler,
	httpServer *xhttp.Server,
	ledger repository.Ledger,
	archive repository.Archive,
	audit repository.AuditPublisher,
) *server.App {
	return server.New(cfg, log, orch, normalizer, consumer, resolutions, httpServer, ledger, archive, audit)
}
