package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdk_trace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kmehta2012/ladder-trading/src/eventconsumers"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/ladderapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/metricsapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/moversapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/sessionapi"
	"github.com/kmehta2012/ladder-trading/src/eventproducers/settingsapi"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
	"github.com/kmehta2012/ladder-trading/src/eventservices"
	"github.com/kmehta2012/ladder-trading/src/logger"
	"github.com/kmehta2012/ladder-trading/src/utils"
	"github.com/kmehta2012/ladder-trading/src/worker"
)

func main() {
	run()
}

// setupOTelSDK bootstraps the OpenTelemetry pipeline.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func setupOTelSDK(ctx context.Context, endpoint string) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpointURL(endpoint)))
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", "ladder-engine")))

	tracerProvider := sdk_trace.NewTracerProvider(
		sdk_trace.WithBatcher(traceExporter),
		sdk_trace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	if err != nil {
		return shutdown, err
	}

	meterProvider := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(metricExporter)))
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return shutdown, err
	}

	return shutdown, nil
}

func loadScripMaster() (*eventservices.ScripMaster, error) {
	if path := utils.GetEnvOrDefault("SCRIP_MASTER_PATH", ""); path != "" {
		return eventservices.LoadScripMasterFromFile(path)
	}

	return eventservices.FetchScripMaster(eventservices.ScripMasterURL)
}

func loadSettings() eventmodels.Settings {
	settings := eventmodels.NewDefaultSettings()

	if path := utils.GetEnvOrDefault("LADDER_CONFIG_PATH", ""); path != "" {
		loaded, err := eventmodels.LoadLadderConfigYAML(path)
		if err != nil {
			log.Fatalf("failed to load ladder config: %v", err)
		}
		settings = loaded
	}

	if dryRun := utils.GetEnvOrDefault("DRY_RUN", ""); dryRun != "" {
		settings.DryRun = strings.ToLower(dryRun) == "true"
	}

	return settings
}

// newPrepareSession builds the premarket bootstrap: qualify the universe
// (cache first), hand it to the ranker and subscribe the live feed. Runs at
// most once per session start.
func newPrepareSession(clock *eventmodels.MarketClock, auth *eventservices.DhanAuth, master *eventservices.ScripMaster, cache *eventservices.CandidatesCache, movers *eventconsumers.TopMoversWorker, feed *worker.DhanFeedClient) eventconsumers.PrepareSessionFunc {
	bucket := utils.NewTokenBucket(10, 5)

	return func(ctx context.Context) error {
		tradingDate := clock.TradingDate(time.Now())

		candidates, found, err := cache.Get(tradingDate)
		if err != nil {
			log.Warnf("prepareSession: cache read failed: %v", err)
		}

		if !found {
			log.Infof("prepareSession: qualifying universe for %s (%d symbols)", tradingDate, master.Len())

			candidates, err = eventservices.BuildUniverse(ctx, auth, master, master.Symbols(), bucket)
			if err != nil {
				return fmt.Errorf("prepareSession: failed to build universe: %w", err)
			}

			if err := cache.Put(tradingDate, candidates, clock.NextMidnight(time.Now())); err != nil {
				log.Warnf("prepareSession: cache write failed: %v", err)
			}
		}

		log.Infof("prepareSession: %d candidates qualified for %s", len(candidates), tradingDate)

		movers.SetCandidates(candidates)

		securityIDs := make([]string, 0, len(candidates))
		for _, candidate := range candidates {
			securityIDs = append(securityIDs, candidate.SecurityID)
		}

		if err := feed.Subscribe(securityIDs); err != nil {
			return fmt.Errorf("prepareSession: failed to subscribe feed: %w", err)
		}

		return nil
	}
}

func run() {
	projectsDir, err := utils.GetEnv("PROJECTS_DIR")
	if err != nil {
		log.Fatalf("PROJECTS_DIR not set: %v", err)
	}

	goEnv := utils.GetEnvOrDefault("GO_ENV", "development")

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	if err := utils.InitEnvironmentVariables(projectsDir, goEnv); err != nil {
		log.Panic(err)
	}

	eventpubsub.Init()
	logger.Init()

	log.Infof("Log level set to %v", log.GetLevel())

	clientID, err := utils.GetEnv("DHAN_CLIENT_ID")
	if err != nil {
		log.Fatalf("$DHAN_CLIENT_ID not set: %v", err)
	}

	accessToken, err := utils.GetEnv("DHAN_ACCESS_TOKEN")
	if err != nil {
		log.Fatalf("$DHAN_ACCESS_TOKEN not set: %v", err)
	}

	port := utils.GetEnvOrDefault("PORT", "8080")

	// Set up Telemetry
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
		log.InfoLevel,
	)))

	if otelEndpoint := utils.GetEnvOrDefault("OTEL_ENDPOINT", ""); otelEndpoint != "" {
		otelShutdown, err := setupOTelSDK(ctx, otelEndpoint)
		if err != nil {
			log.Fatalf("failed to setup otel sdk: %v", err)
		}

		defer func() {
			if err := otelShutdown(context.Background()); err != nil {
				log.Errorf("otel shutdown: %v", err)
			}
		}()
	}

	auth := eventservices.NewDhanAuth(clientID, accessToken)
	if err := auth.Validate(); err != nil {
		log.Fatalf("invalid broker credentials: %v", err)
	}

	clock, err := eventmodels.NewMarketClock()
	if err != nil {
		log.Fatalf("failed to create market clock: %v", err)
	}

	master, err := loadScripMaster()
	if err != nil {
		log.Fatalf("failed to load scrip master: %v", err)
	}
	log.Infof("scrip master loaded, %d equity records", master.Len())

	cacheDir := utils.GetEnvOrDefault("CANDIDATES_CACHE_DIR", "candidates-cache")
	cache, err := eventservices.OpenCandidatesCache(cacheDir)
	if err != nil {
		log.Fatalf("failed to open candidates cache: %v", err)
	}
	defer cache.Close()

	engine := eventmodels.NewEngineState(loadSettings())

	feedURL := utils.GetEnvOrDefault("DHAN_FEED_URL", eventservices.DhanFeedBaseURL)
	feed := worker.NewDhanFeedClient(&wg, feedURL, clientID, accessToken, master, clock)

	// Wire workers. The risk manager is shared state, not a goroutine.
	risk := eventconsumers.NewRiskManager()
	executor := eventconsumers.NewOrderExecutionWorker(&wg, auth, engine)
	runner := eventconsumers.NewLadderRunnerWorker(&wg, engine, risk, executor)
	movers := eventconsumers.NewTopMoversWorker(&wg, engine, risk, runner, auth, master)
	governor := eventconsumers.NewSessionGovernorWorker(&wg, clock, engine, risk, runner, movers, auth,
		newPrepareSession(clock, auth, master, cache, movers, feed))
	monitor := eventconsumers.NewPerformanceMonitorWorker(&wg)
	broadcaster := eventconsumers.NewSnapshotBroadcasterWorker(&wg, engine, risk, runner, movers, governor)

	eventpubsub.Subscribe("main", eventmodels.FeedStatusEventName, func(event eventmodels.FeedStatusEvent) {
		engine.SetFeedConnected(event.Connected)
		if event.Fatal {
			log.Errorf("market feed down after %d attempts: %s", event.Attempts, event.Err)
		}
	})

	executor.Start(ctx)
	runner.Start(ctx)
	movers.Start(ctx)
	governor.Start(ctx)
	monitor.Start(ctx)
	broadcaster.Start(ctx)
	feed.Start(ctx)

	// Setup router
	router := mux.NewRouter()
	sessionapi.SetupHandler(router.PathPrefix("/api/session").Subrouter(), governor, engine)
	settingsapi.SetupHandler(router.PathPrefix("/api/settings").Subrouter(), engine)
	ladderapi.SetupHandler(router.PathPrefix("/api/ladders").Subrouter(), runner, risk)
	moversapi.SetupHandler(router.PathPrefix("/api/movers").Subrouter(), movers)
	metricsapi.SetupHandler(router.PathPrefix("/api/metrics").Subrouter(), monitor, risk)
	router.HandleFunc("/ws", broadcaster.HandleWS)

	// Register pprof handlers
	pprofRouter := router.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.HandleFunc("/", http.HandlerFunc(pprof.Index))
	pprofRouter.HandleFunc("/cmdline", http.HandlerFunc(pprof.Cmdline))
	pprofRouter.HandleFunc("/profile", http.HandlerFunc(pprof.Profile))
	pprofRouter.HandleFunc("/symbol", http.HandlerFunc(pprof.Symbol))
	pprofRouter.HandleFunc("/trace", http.HandlerFunc(pprof.Trace))
	pprofRouter.Handle("/allocs", pprof.Handler("allocs"))
	pprofRouter.Handle("/goroutine", pprof.Handler("goroutine"))
	pprofRouter.Handle("/heap", pprof.Handler("heap"))

	// Setup web server
	srv := &http.Server{
		Handler: otelhttp.NewHandler(router, "ladder-engine"),
		Addr:    fmt.Sprintf(":%s", port),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start web server
	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil {
			if err.Error() != "http: Server closed" {
				log.Fatalf("failed to start server: %v", err)
			}
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	log.Info("Main: init complete")

	// Block here until program is shut down
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}

	// Signal event clients to shut down
	cancel()

	// Wait for event clients to shut down
	wg.Wait()

	log.Info("Main: gracefully stopped!")
}
