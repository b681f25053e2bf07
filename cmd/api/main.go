package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "homepulse/internal/adapter/actor"
	"homepulse/internal/adapter/store"
	"homepulse/internal/config"
	"homepulse/internal/core/actor"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"
	"homepulse/internal/core/service"
	"homepulse/internal/server"
	"homepulse/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// stores
	devices, usage, closeStore, err := buildStores(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	// domain services
	evaluator := service.NewScheduleEvaluator(devices, usage, cfg.Scheduler.MaxConcurrency, logger)
	simulator := service.NewBehaviorSimulator(devices, logger)
	miner := service.NewPatternMiner(devices, logger)
	analyzer := service.NewEfficiencyAnalyzer(devices, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg,
			func(es *eventstream.EventStream) *actor.ScheduleActor {
				return actor.NewScheduleActor(cfg, evaluator, es, logger)
			},
			func(es *eventstream.EventStream) *actor.AutomationActor {
				return actor.NewAutomationActor(cfg, devices, simulator, miner, analyzer, es, logger)
			},
			mqttActorProvider(cfg, logger),
			func(mqttActor *pactor.PID) *actor.HADiscoveryActor {
				return actor.NewHADiscoveryActor(cfg, devices, mqttActor, logger)
			},
			logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// periodic pattern mining
	stopMining, err := startMiningScheduler(cfg, ctx, pid, logger)
	if err != nil {
		logger.Fatal("mining scheduler init failed", zap.Error(err))
	}
	defer stopMining()

	server := server.NewServer(*cfg, ctx, pid, devices, usage)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func buildStores(cfg *config.Config, logger *zap.Logger) (port.DeviceStore, port.UsageStore, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client := store.NewRedisClient(cfg.Redis)
		redisStore := store.NewRedisStore(client)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisStore.Ping(pingCtx); err != nil {
			return nil, nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		logger.Info("using redis store", zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
		return redisStore, redisStore, func() {
			_ = redisStore.Close()
		}, nil
	case "memory":
		logger.Info("using in-memory store")
		memStore := store.NewMemoryStore()
		return memStore, memStore, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func startMiningScheduler(cfg *config.Config, ctx *pactor.RootContext, masterActor *pactor.PID, logger *zap.Logger) (func(), error) {
	if cfg.Mining.Cron == "" {
		return func() {}, nil
	}
	trigger, err := quartz.NewCronTrigger(cfg.Mining.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid mining cron %q: %w", cfg.Mining.Cron, err)
	}
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}

	mineJob := job.NewFunctionJob(func(_ context.Context) (int, error) {
		res, err := ctx.RequestFuture(masterActor, domain.MineAllPatternsRequest{}, 2*time.Minute).Result()
		if err != nil {
			return 0, err
		}
		response, ok := res.(domain.MineAllPatternsResponse)
		if !ok {
			return 0, errors.New("unexpected response")
		}
		if response.HasResponseError() {
			return 0, response.GetResponseError()
		}
		logger.Info("pattern mining pass complete", zap.Int("mined", response.Mined))
		return response.Mined, nil
	})
	err = sched.ScheduleJob(quartz.NewJobDetail(mineJob, quartz.NewJobKey("mine_patterns")), trigger)
	if err != nil {
		return nil, err
	}
	schedCtx, cancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)
	return func() {
		cancel()
		sched.Stop()
	}, nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => HOMEPULSE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("HOMEPULSE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("homepulse")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Scheduler.TickIntervalMillis > 0 && cfg.Scheduler.TickIntervalMillis < 1000 {
		return nil, errors.New("config param scheduler.tick_interval_millis should be 0 or >= 1000")
	}
	if cfg.Scheduler.MaxConcurrency <= 0 {
		return nil, errors.New("config param scheduler.max_concurrency should be > 0")
	}
	if cfg.Simulation.IntervalMillis > 0 && cfg.Simulation.IntervalMillis < 1000 {
		return nil, errors.New("config param simulation.interval_millis should be 0 or >= 1000")
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		if !cfg.MQTT.Enable {
			return adactor.NewTestMQTTActor(cfg, logger)
		}
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "homepulse")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("scheduler.tick_interval_millis", 60000)
	viper.SetDefault("scheduler.max_concurrency", 4)
	viper.SetDefault("simulation.interval_millis", 0)
	viper.SetDefault("mining.cron", "0 0 */6 * * *")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Redis.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
