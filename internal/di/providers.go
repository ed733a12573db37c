package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"PricePulse/internal/domain/repository"
	"PricePulse/internal/handler/api"
	mid "PricePulse/internal/middleware"
	internalrepo "PricePulse/internal/repository"
	icache "PricePulse/internal/service/cache"
	"PricePulse/internal/service/orderfeed"
	"PricePulse/internal/services/notify"
	"PricePulse/internal/services/pricing"
	"PricePulse/internal/usecase"
	pkgcache "PricePulse/pkg/cache"
	pkgch "PricePulse/pkg/clickhouse"
	"PricePulse/pkg/config"
	xhttp "PricePulse/pkg/http"
	pkgkafka "PricePulse/pkg/kafka"
	"PricePulse/pkg/logger"
	"PricePulse/pkg/metrics"
	pkgqueue "PricePulse/pkg/queue"
	"PricePulse/pkg/server"
)

// ProvideLogger creates the process-wide structured logger. Production gets
// JSON for log shippers, everything else a console writer.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return logger.New(&logger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// analytics schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS pricepulse",
		"CREATE TABLE IF NOT EXISTS pricepulse.products (product_id String, name String, category String, base_price Float64, created_at DateTime DEFAULT now()) ENGINE=ReplacingMergeTree ORDER BY product_id",
		"CREATE TABLE IF NOT EXISTS pricepulse.sales_events (ts DateTime, product_id String, units Int64, price Float64, source String, event_id String) ENGINE=MergeTree ORDER BY (product_id, ts)",
		"CREATE TABLE IF NOT EXISTS pricepulse.competitor_prices (ts DateTime, product_id String, competitor String, price Float64) ENGINE=MergeTree ORDER BY (product_id, ts)",
		"CREATE TABLE IF NOT EXISTS pricepulse.trend_scores (ts DateTime, product_id String, score Float64) ENGINE=MergeTree ORDER BY (product_id, ts)",
		"CREATE TABLE IF NOT EXISTS pricepulse.demand_forecasts (product_id String, forecast_date Date, demand Float64, lower_bound Float64, upper_bound Float64, confidence Float64, created_at DateTime) ENGINE=MergeTree ORDER BY (product_id, forecast_date, created_at)",
		"CREATE TABLE IF NOT EXISTS pricepulse.price_recommendations (id String, product_id String, recommended_price Float64, expected_revenue Float64, confidence Float64, created_at DateTime) ENGINE=MergeTree ORDER BY (product_id, created_at)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured and ingest writes straight to ClickHouse.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the consumer for the sales topic, or nil when
// Kafka is not part of the deployment.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Consumer.GroupID == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// Storages bundles the two sales_events writers. Feed rows come from the
// order feed or the Kafka consumer, Sim rows from the demand simulator; the
// source column keeps them distinguishable in queries.
type Storages struct {
	Feed repository.Storage
	Sim  repository.Storage
}

func ProvideStorages(chClient *pkgch.Client, cfg *config.Config) Storages {
	table := cfg.ClickHouse.Database + ".sales_events"
	return Storages{
		Feed: internalrepo.NewCHSalesStorage(chClient.DB(), table, "orderfeed"),
		Sim:  internalrepo.NewCHSalesStorage(chClient.DB(), table, "simulator"),
	}
}

// ProvideSalesPublisher creates the Kafka publisher repository, or nil when
// there is no producer to publish through.
func ProvideSalesPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideOrderFeed creates the order feed WebSocket stream, or nil when the
// feed is disabled and history comes from the simulator alone.
func ProvideOrderFeed(cfg *config.Config, l *logger.Logger) repository.SalesStream {
	if !cfg.OrderFeed.Enabled {
		return nil
	}
	return orderfeed.New(
		cfg.OrderFeed.APIKey,
		cfg.OrderFeed.WebSocketURL,
		cfg.OrderFeed.Products,
		cfg.OrderFeed.ReconnectDelay,
		cfg.OrderFeed.PingInterval,
		l,
	)
}

// ProvideSalesProcessor creates the sales event processor.
func ProvideSalesProcessor(
	pub repository.Publisher,
	storages Storages,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SalesProcessor {
	return usecase.NewSalesProcessor(
		pub,
		storages.Feed,
		m,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideSalesCollector creates the order feed collector, or nil when the
// feed is disabled.
func ProvideSalesCollector(
	stream repository.SalesStream,
	processor *usecase.SalesProcessor,
	m repository.Metrics,
) *usecase.SalesCollector {
	if stream == nil {
		return nil
	}
	// Rate-limit and buffer between the WebSocket and the backend.
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewSalesCollector(stream, processor, m, pipe)
}

// ProvideKafkaSalesHandler registers the handler for the sales topic.
func ProvideKafkaSalesHandler(storages Storages, m repository.Metrics, cfg *config.Config) *usecase.KafkaSalesHandler {
	return usecase.NewKafkaSalesHandler(cfg.Kafka.Topic, storages.Feed, m)
}

// ProvideMarketStore creates the ClickHouse market data reader.
func ProvideMarketStore(chClient *pkgch.Client, l *logger.Logger) repository.MarketStore {
	store := internalrepo.NewCHMarketStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideResultsStore creates the ClickHouse store for computed artifacts.
func ProvideResultsStore(chClient *pkgch.Client, l *logger.Logger) repository.ResultsStore {
	store := internalrepo.NewCHResultsStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideSignalEngine builds the signal engine on its tuned defaults.
func ProvideSignalEngine() *pricing.SignalEngine {
	return pricing.NewSignalEngine(pricing.DefaultSignalParams())
}

// ProvideForecastParams maps forecast config onto the Holt-Winters
// parameters. Zero-valued fields keep their defaults so a sparse YAML stays
// valid.
func ProvideForecastParams(cfg *config.Config) pricing.ForecastParams {
	p := pricing.DefaultForecastParams()
	fc := cfg.Pricing.Forecast
	if fc.Alpha > 0 {
		p.Alpha = fc.Alpha
	}
	if fc.Beta > 0 {
		p.Beta = fc.Beta
	}
	if fc.Gamma > 0 {
		p.Gamma = fc.Gamma
	}
	if fc.SeasonLength > 0 {
		p.SeasonLength = fc.SeasonLength
	}
	if fc.MinHorizon > 0 {
		p.MinHorizon = fc.MinHorizon
	}
	if fc.MaxHorizon > 0 {
		p.MaxHorizon = fc.MaxHorizon
	}
	return p
}

// ProvideForecaster builds the Holt-Winters forecaster.
func ProvideForecaster(params pricing.ForecastParams) *pricing.Forecaster {
	return pricing.NewForecaster(params)
}

// ProvideElasticityEstimator maps elasticity config onto the estimator.
func ProvideElasticityEstimator(cfg *config.Config) *pricing.ElasticityEstimator {
	p := pricing.DefaultElasticityParams()
	ec := cfg.Pricing.Elasticity
	if ec.MinPairs > 0 {
		p.MinPairs = ec.MinPairs
	}
	if ec.MatchedPairThreshold > 0 {
		p.MatchedPairThreshold = ec.MatchedPairThreshold
	}
	if ec.DefaultCoefficient < 0 {
		p.DefaultCoefficient = ec.DefaultCoefficient
	}
	return pricing.NewElasticityEstimator(p)
}

// ProvidePriceOptimizer builds the revenue optimizer on its defaults.
func ProvidePriceOptimizer() *pricing.PriceOptimizer {
	return pricing.NewPriceOptimizer(pricing.DefaultOptimizerParams())
}

// ProvideRecommendationEngine maps rule thresholds from config.
func ProvideRecommendationEngine(cfg *config.Config) *pricing.RecommendationEngine {
	t := pricing.DefaultRuleThresholds()
	rc := cfg.Pricing.Rules
	if rc.PositionOverpriced > 0 {
		t.PositionOverpriced = rc.PositionOverpriced
	}
	if rc.PositionUnderpriced > 0 {
		t.PositionUnderpriced = rc.PositionUnderpriced
	}
	if rc.GrowthSurge > 0 {
		t.GrowthSurge = rc.GrowthSurge
	}
	if rc.GrowthDrop < 0 {
		t.GrowthDrop = rc.GrowthDrop
	}
	if rc.GrowthLag > 0 {
		t.GrowthLag = rc.GrowthLag
	}
	if rc.MomentumSurge > 0 {
		t.MomentumSurge = rc.MomentumSurge
	}
	if rc.MomentumPrep > 0 {
		t.MomentumPrep = rc.MomentumPrep
	}
	if rc.SeasonalLow > 0 {
		t.SeasonalLow = rc.SeasonalLow
	}
	return pricing.NewRecommendationEngine(t)
}

// ProvideSimParams maps simulator config onto the generator parameters.
func ProvideSimParams(cfg *config.Config) pricing.SimParams {
	p := pricing.DefaultSimParams()
	sc := cfg.Simulator
	if sc.Seed != 0 {
		p.Seed = sc.Seed
	}
	if sc.BaseDemand > 0 {
		p.BaseDemand = sc.BaseDemand
	}
	if sc.GrowthRate != 0 {
		p.GrowthRate = sc.GrowthRate
	}
	if sc.Elasticity < 0 {
		p.Elasticity = sc.Elasticity
	}
	return p
}

// ProvideSalesGenerator builds the synthetic sales generator.
func ProvideSalesGenerator(params pricing.SimParams) *pricing.SalesGenerator {
	return pricing.NewSalesGenerator(params)
}

// ProvideCacheService selects the object cache backend: layered
// Redis+memory when Redis is configured, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	rc := cfg.Pricing.Redis
	if !rc.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(rc.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", rc.Addr, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, fmt.Errorf("redis port %q: %w", portStr, err)
	}
	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(rc.Password),
		pkgcache.WithRedisDB(rc.DB),
		pkgcache.WithRedisPrefix("pricepulse"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(redisCache), nil
}

// ProvideBytesCache selects the HTTP response cache backend.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	rc := cfg.Pricing.Redis
	if rc.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideAlertNotifier creates the webhook alert channel.
func ProvideAlertNotifier(cfg *config.Config, l *logger.Logger, m repository.Metrics) usecase.AlertNotifier {
	return notify.NewWebhook(cfg, l, m)
}

func ProvideSignalsUseCase(
	market repository.MarketStore,
	engine *pricing.SignalEngine,
	cacheSvc pkgcache.Service,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.SignalsUseCase {
	return usecase.NewSignalsUseCase(
		market,
		engine,
		cacheSvc,
		cfg.Pricing.MaxProducts,
		cfg.Pricing.CacheTTL.Signals,
		l,
	)
}

func ProvideKPIUseCase(signals *usecase.SignalsUseCase, cacheSvc pkgcache.Service, cfg *config.Config) *usecase.KPIUseCase {
	return usecase.NewKPIUseCase(signals, cacheSvc, cfg.Pricing.CacheTTL.KPIs)
}

func ProvideForecastUseCase(
	market repository.MarketStore,
	results repository.ResultsStore,
	forecaster *pricing.Forecaster,
	params pricing.ForecastParams,
	l *logger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(market, results, forecaster, params, l)
}

func ProvidePricingUseCase(
	market repository.MarketStore,
	results repository.ResultsStore,
	estimator *pricing.ElasticityEstimator,
	optimizer *pricing.PriceOptimizer,
	l *logger.Logger,
) *usecase.PricingUseCase {
	return usecase.NewPricingUseCase(market, results, estimator, optimizer, l)
}

func ProvideRecommendUseCase(
	market repository.MarketStore,
	results repository.ResultsStore,
	signals *usecase.SignalsUseCase,
	engine *pricing.RecommendationEngine,
	notifier usecase.AlertNotifier,
	l *logger.Logger,
) *usecase.RecommendUseCase {
	return usecase.NewRecommendUseCase(market, results, signals, engine, notifier, l)
}

func ProvideHistoryUseCase(market repository.MarketStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(market)
}

func ProvideSimulateUseCase(
	market repository.MarketStore,
	storages Storages,
	generator *pricing.SalesGenerator,
	params pricing.SimParams,
	cacheSvc pkgcache.Service,
	signals *usecase.SignalsUseCase,
	l *logger.Logger,
) *usecase.SimulateUseCase {
	return usecase.NewSimulateUseCase(market, storages.Sim, generator, params, cacheSvc, signals, l)
}

// QueueBundle carries the queue service plus the concrete Redis queue when
// one is running, so the app can stop its workers on shutdown.
type QueueBundle struct {
	Service pkgqueue.QueueService
	Redis   *pkgqueue.RedisQueue
}

// ProvideQueue wires the background job queue. With Redis available jobs go
// through the persistent queue with retries; otherwise an inline queue runs
// them on the caller's goroutine so async endpoints still work.
func ProvideQueue(
	cfg *config.Config,
	forecast *usecase.ForecastUseCase,
	sim *usecase.SimulateUseCase,
	l *logger.Logger,
) QueueBundle {
	jobs := []pkgqueue.Job{
		usecase.NewForecastRefreshJob(forecast, l),
		usecase.NewSalesSimulateJob(sim, l),
	}

	if cfg.Queue.Enabled && cfg.Pricing.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Pricing.Redis.Addr,
			Password: cfg.Pricing.Redis.Password,
			DB:       cfg.Pricing.Redis.DB,
		})
		q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
			Workers:    cfg.Queue.Workers,
			QueueSize:  cfg.Queue.QueueSize,
			RetryLimit: cfg.Queue.RetryLimit,
			RetryDelay: cfg.Queue.RetryDelay,
		}, client, pkgqueue.ModeProducerConsumer, pkgqueue.WithKeyPrefix("pricepulse:queue"))
		q.RegisterJobs(jobs)

		// Error digests ride a producer-only publisher under a separate
		// key prefix; the log shipper drains that list, not our workers.
		logPub := pkgqueue.NewRedisPublisher(l, client, pkgqueue.WithKeyPrefix("pricepulse:logs"))
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs.errors",
			Publisher:      logPub,
		})

		return QueueBundle{Service: q, Redis: q}
	}

	return QueueBundle{Service: pkgqueue.NewInlineQueue(l, jobs...)}
}

// ProvideHTTPHandler assembles the feature handlers behind one router.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *logger.Logger,
	chClient *pkgch.Client,
	cacheSvc pkgcache.Service,
	bytesCache icache.BytesCache,
	collector *usecase.SalesCollector,
	qb QueueBundle,
	signals *usecase.SignalsUseCase,
	kpis *usecase.KPIUseCase,
	history *usecase.HistoryUseCase,
	forecast *usecase.ForecastUseCase,
	pricingUC *usecase.PricingUseCase,
	recommend *usecase.RecommendUseCase,
	simulate *usecase.SimulateUseCase,
) xhttp.Handler {
	ttl := cfg.Pricing.CacheTTL

	analytics := api.NewAnalyticsEchoHandler(l, signals, kpis, history)
	analytics.SetCache(bytesCache, ttl.Signals, ttl.KPIs)

	pricingHandler := api.NewPricingEchoHandler(l, forecast, pricingUC, recommend, simulate)
	// Scenario responses share the elasticity TTL.
	pricingHandler.SetCache(bytesCache, ttl.Elasticity, ttl.Elasticity)
	pricingHandler.SetQueue(qb.Service)

	health := api.NewHealthHandler(chClient)
	health.SetCache(cacheSvc)
	if collector != nil {
		health.SetStream(collector)
	}

	return api.NewRouter(analytics, pricingHandler, health)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.SalesCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSalesHandler,
	chClient *pkgch.Client,
	qb QueueBundle,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(tracingHook(), loggingHook(l)))
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, qb.Redis, handler)
	if collector != nil {
		app.SalesProc = collector.Processor()
	}
	return app
}

// tracingHook stamps the handling start time and carries the producer's
// trace_id header into the context so failure logs correlate across
// services.
func tracingHook() pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
	}
}

// slowHandlerThreshold flags handlers that hold a partition long enough
// to stall the group.
const slowHandlerThreshold = 5 * time.Second

// loggingHook surfaces handler failures and slow handlers in the logs.
// Retries and DLQ routing stay inside the consumer; the hook only
// observes.
func loggingHook(l *logger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		After: func(ctx context.Context, topic string, _ kafkago.Message, _ []byte, _ error) {
			start, ok := pkgkafka.StartTime(ctx)
			if !ok || time.Since(start) < slowHandlerThreshold {
				return
			}
			l.Warn("slow kafka handler",
				logger.String("topic", topic),
				logger.String("elapsed", time.Since(start).String()))
		},
		Err: func(ctx context.Context, topic string, km kafkago.Message, data []byte, err error) {
			fields := []logger.Field{
				logger.String("topic", topic),
				logger.Int("partition", km.Partition),
				logger.Any("offset", km.Offset),
				logger.Error(err),
			}
			if tid := pkgkafka.TraceID(ctx); tid != "" {
				fields = append(fields, logger.String("trace_id", tid))
			}
			l.Error("kafka message failed", fields...)
		},
	}
}
