package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/felis2803/TradeForge-sub000/internal/app/engine"
	checkpointv1 "github.com/felis2803/TradeForge-sub000/internal/domain/checkpoint/v1"
	marketv1 "github.com/felis2803/TradeForge-sub000/internal/domain/market/v1"
	reportv1 "github.com/felis2803/TradeForge-sub000/internal/domain/report/v1"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/checkpoint"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/replay"
	"github.com/felis2803/TradeForge-sub000/internal/usecase/report"
	"github.com/felis2803/TradeForge-sub000/pkg/config"
	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/felis2803/TradeForge-sub000/pkg/logger"
	"github.com/felis2803/TradeForge-sub000/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	cfg = &config.Config{}
	config.MustLoad(cfg)

	l, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.LogLevel)))
	if err != nil {
		panic(err)
	}
	log = l
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	scenario, err := config.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "load_scenario"})
		os.Exit(1)
	}

	clock, err := buildClock(cfg.ClockConfig)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_clock"})
		os.Exit(1)
	}

	sink, err := buildSink(cfg.ReportConfig)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_report_sink"})
		os.Exit(1)
	}
	defer sink.Close()

	store, cleanup, err := buildStore(ctx, cfg.CheckpointConfig)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_checkpoint_store"})
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	options := app.DefaultEngineOptions()
	options.CheckpointEvery = cfg.CheckpointConfig.EveryEvents
	options.CheckpointInterval = cfg.CheckpointConfig.Interval
	options.Resume = cfg.CheckpointConfig.Resume

	limits := replay.Limits{
		MaxEvents:   cfg.LimitsConfig.MaxEvents,
		MaxSimTime:  0,
		MaxWallTime: cfg.LimitsConfig.MaxWallTime,
	}
	if cfg.LimitsConfig.MaxSimTimeMs > 0 {
		limits.MaxSimTime = marketv1.Timestamp(cfg.LimitsConfig.MaxSimTimeMs)
	}

	engine, err := app.NewEngine(scenario, clock, limits, sink, store, options, log)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_engine"})
		os.Exit(1)
	}

	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "start_engine"})
		os.Exit(1)
	}

	log.Info("simulator started",
		logger.Field{Key: "runId", Value: engine.RunID()},
		logger.Field{Key: "symbol", Value: scenario.Symbol},
		logger.Field{Key: "clock", Value: clock.Desc()},
	)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", logger.Field{Key: "signal", Value: sig.String()})
		cancel()
	case <-engine.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "stop_engine"})
	}

	if _, runErr := engine.Result(); runErr != nil {
		log.Error(runErr, logger.Field{Key: "action", Value: "run"})
		os.Exit(1)
	}

	summary, err := engine.Summary()
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_summary"})
		os.Exit(1)
	}
	printSummary(summary)

	log.Info("simulator shutdown complete")
}

func buildClock(cfg config.ClockConfig) (replay.Clock, error) {
	switch cfg.Mode {
	case "logical":
		return replay.NewLogicalClock(), nil
	case "wall":
		return replay.NewWallClock(), nil
	case "accelerated":
		if cfg.Speed <= 0 {
			return nil, errors.New(errors.ConfigError, "accelerated clock needs a positive speed, got %g", cfg.Speed)
		}
		return replay.NewAcceleratedClock(cfg.Speed), nil
	default:
		return nil, errors.New(errors.ConfigError, "unknown clock mode %q", cfg.Mode)
	}
}

func buildSink(cfg config.ReportConfig) (reportv1.Sink, error) {
	switch cfg.Sink {
	case "ndjson":
		return report.NewNDJSONSink(cfg.Path, log)
	case "kafka":
		return report.NewKafkaSink(report.KafkaConfig{Brokers: cfg.Brokers, Topic: cfg.Topic}, log), nil
	default:
		return nil, errors.New(errors.ConfigError, "unknown report sink %q", cfg.Sink)
	}
}

func buildStore(ctx context.Context, cfg config.CheckpointConfig) (checkpointv1.Store, func(), error) {
	switch cfg.Store {
	case "none":
		return nil, nil, nil
	case "file":
		return checkpoint.NewFileStore(cfg.Path, log), nil, nil
	case "redis":
		redisConfig := redis.DefaultConfig()
		if err := config.Load(redisConfig); err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(log, redisConfig)
		if err := client.Connect(ctx); err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error(err, logger.Field{Key: "action", Value: "disconnect_redis"})
			}
		}
		return checkpoint.NewRedisStore(client, cfg.RedisKey, cfg.RedisTTL, log), cleanup, nil
	default:
		return nil, nil, errors.New(errors.ConfigError, "unknown checkpoint store %q", cfg.Store)
	}
}

func printSummary(summary *app.RunSummary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "encode_summary"})
		return
	}
	fmt.Println(string(data))
}
