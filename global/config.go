package global

import (
	"sync"

	"LiveGateway/logger"
	ids "LiveGateway/tools/ids"

	"github.com/spf13/viper"
)

// AppConfig 网关进程配置，来自 livegateway.yaml / 环境变量。
type AppConfig struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		GatewayID string `mapstructure:"gateway_id"`
		NodeID    int64  `mapstructure:"node_id"`
	} `mapstructure:"server"`

	Mongo struct {
		URI        string `mapstructure:"uri"`
		Database   string `mapstructure:"database"`
		Collection string `mapstructure:"collection"`
	} `mapstructure:"mongo"`

	Chat struct {
		HistorySize   int `mapstructure:"history_size"`
		SendQueueSize int `mapstructure:"send_queue_size"`
	} `mapstructure:"chat"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
}

var (
	cfg     AppConfig
	cfgOnce sync.Once
)

// ConfigAll 加载配置并初始化 ids 节点。
func ConfigAll() {
	ConfigApp()
	ConfigIds()
}

// ConfigApp 读取 livegateway.yaml（可缺省，全部走默认值）。
func ConfigApp() {
	cfgOnce.Do(func() {
		v := viper.New()
		v.SetConfigName("livegateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetEnvPrefix("LIVEGW")
		v.AutomaticEnv()

		v.SetDefault("server.addr", ":8080")
		v.SetDefault("server.gateway_id", "live_gw-1")
		v.SetDefault("server.node_id", 100)
		v.SetDefault("mongo.uri", "")
		v.SetDefault("mongo.database", "contentPlatform")
		v.SetDefault("mongo.collection", "settings")
		v.SetDefault("chat.history_size", 100)
		v.SetDefault("chat.send_queue_size", 256)
		v.SetDefault("auth.jwt_secret", "")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				logger.Infof("[config] no livegateway.yaml, using defaults")
			} else {
				logger.Errorf("[config] read config: %v", err)
			}
		}
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Errorf("[config] unmarshal config: %v", err)
		}
	})
}

func ConfigIds() {
	ConfigApp()
	ids.SetNodeID(cfg.Server.NodeID)
}

func App() *AppConfig {
	ConfigApp()
	return &cfg
}

// GetJwtSecret 为空表示未配置校验密钥，identify 按自报身份处理。
func GetJwtSecret() []byte {
	ConfigApp()
	if cfg.Auth.JWTSecret == "" {
		return nil
	}
	return []byte(cfg.Auth.JWTSecret)
}
