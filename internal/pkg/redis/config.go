package redis

import (
	"errors"
	"time"
)

// Config 单机 Redis
type Config struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"` // Redis 6 ACL
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("redis: addr is required")
	case c.DB < 0 || c.DB > 15:
		return errors.New("redis: db must be between 0 and 15")
	case c.PoolSize <= 0:
		return errors.New("redis: pool_size must be positive")
	case c.MinIdleConns < 0 || c.MinIdleConns > c.PoolSize:
		return errors.New("redis: min_idle_conns must be between 0 and pool_size")
	case c.MaxRetries < 0:
		return errors.New("redis: max_retries must not be negative")
	case c.DialTimeout <= 0 || c.PoolTimeout <= 0:
		return errors.New("redis: dial_timeout and pool_timeout must be positive")
	}
	return nil
}
