package util

import (
	"math"

	"homepulse/internal/config"

	"go.uber.org/zap"
)

// Round2 is the single rounding policy for values crossing the
// storage/reporting boundary. Formulas stay exact internally.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Store: config.StoreConfig{
			Backend: "memory",
		},
		Redis: config.RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "homepulse",
		},
		Scheduler: config.SchedulerConfig{
			TickIntervalMillis: 60000,
			MaxConcurrency:     4,
		},
		Simulation: config.SimulationConfig{
			IntervalMillis: 0,
		},
		Mining: config.MiningConfig{
			Cron: "0 0 */6 * * *",
		},
		Port: 8080,
	}
}
