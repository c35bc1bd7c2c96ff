package models

import "time"

type Config struct {
	Database DatabaseConfig
	Monitor  MonitorConfig
	Upstream UpstreamConfig
	Server   ServerConfig
}

type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type MonitorConfig struct {
	PollingInterval  time.Duration
	RateLimitBackoff time.Duration
	MinConfirmations int64
	GatewaysFile     string
}

type UpstreamConfig struct {
	SoChainBaseUrl  string
	BitfinexBaseUrl string
	RequestTimeout  time.Duration
}

type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}
