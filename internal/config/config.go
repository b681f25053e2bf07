package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level

	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Mining     MiningConfig     `mapstructure:"mining"`
	Port       uint             `mapstructure:"port"`
	HttpLog    bool             `mapstructure:"http_log"`
}

type StoreConfig struct {
	// Backend selects the device/usage store implementation: "memory" or
	// "redis".
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int `mapstructure:"db"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type SchedulerConfig struct {
	TickIntervalMillis uint32 `mapstructure:"tick_interval_millis"`
	MaxConcurrency     int    `mapstructure:"max_concurrency"`
}

type SimulationConfig struct {
	// IntervalMillis is the background simulation period. 0 disables the
	// background loop; simulation stays available on demand.
	IntervalMillis uint32 `mapstructure:"interval_millis"`
}

type MiningConfig struct {
	// Cron is a quartz cron expression for periodic pattern re-mining.
	Cron string `mapstructure:"cron"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
