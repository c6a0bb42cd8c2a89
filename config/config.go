package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Db_Conn_Str        string
	Rabbit_Url         string
	Whatsapp_Api_Url   string
	Whatsapp_Api_Token string

	Grace_Period_Seconds       int
	Reconcile_Interval_Seconds int
	Reconcile_Dwell_Seconds    int
	Reconcile_Batch_Limit      int
	Dispatch_Interval_Seconds  int
	Dispatch_Batch_Limit       int
	Sends_Per_Minute           int
	Send_Retry_Backoff_Seconds int

	BugSink_Enabled     bool
	BugSink_DSN         string
	BugSink_Environment string
	BugSink_Release     string
}

var config Config

func C() *Config {
	return &config
}

func Init(file string) {
	log.Printf("[CONFIG] Initializing configuration from file: %s", file)

	viper.SetConfigName(file)
	viper.AddConfigPath(".")

	// Pipeline timing defaults. The reconcile dwell must stay larger than the
	// grace period so a live client always gets first chance.
	viper.SetDefault("Grace_Period_Seconds", 60)
	viper.SetDefault("Reconcile_Interval_Seconds", 180)
	viper.SetDefault("Reconcile_Dwell_Seconds", 90)
	viper.SetDefault("Reconcile_Batch_Limit", 20)
	viper.SetDefault("Dispatch_Interval_Seconds", 60)
	viper.SetDefault("Dispatch_Batch_Limit", 100)
	viper.SetDefault("Sends_Per_Minute", 28)
	viper.SetDefault("Send_Retry_Backoff_Seconds", 3)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Error reading config file: %s", err))
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(fmt.Errorf("Error unmarshalling config: %s", err))
	}

	log.Printf("[CONFIG] Configuration loaded successfully")
	log.Printf("[CONFIG] Database connection string configured")
	log.Printf("[CONFIG] RabbitMQ URL configured")
	log.Printf("[CONFIG] Grace period: %ds, reconcile dwell: %ds, reconcile interval: %ds",
		config.Grace_Period_Seconds, config.Reconcile_Dwell_Seconds, config.Reconcile_Interval_Seconds)
}

// GracePeriod returns the client-side grace window duration
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Grace_Period_Seconds) * time.Second
}

// ReconcileInterval returns the reconciliation worker period
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile_Interval_Seconds) * time.Second
}

// ReconcileDwell returns how old an unprocessed change log entry must be
// before the worker picks it up.
func (c *Config) ReconcileDwell() time.Duration {
	return time.Duration(c.Reconcile_Dwell_Seconds) * time.Second
}

// DispatchInterval returns the due-message dispatcher period
func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.Dispatch_Interval_Seconds) * time.Second
}

// SendRetryBackoff returns the wait before the single transient-failure retry
func (c *Config) SendRetryBackoff() time.Duration {
	return time.Duration(c.Send_Retry_Backoff_Seconds) * time.Second
}
