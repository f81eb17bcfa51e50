package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/canopyrisk/stormsim/internal/stormsim"
	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/worker"
)

const customConfigLocation = "config"

func init() {
	pflag.StringSlice(
		customConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

func main() {
	stormsim.ConfigureLogging()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Error(err)
		os.Exit(-1)
	}

	var config configuration.StormSimConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(customConfigLocation)
	if err := configuration.LoadConfig(&config, "./config/stormsim", userSpecifiedConfigs); err != nil {
		log.WithError(err).Error("Failed loading configuration")
		os.Exit(-1)
	}

	if config.MetricsPort > 0 {
		shutdownMetricServer := stormsim.ServeMetrics(config.MetricsPort)
		defer shutdownMetricServer()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := worker.New(config)
	if err != nil {
		log.WithError(err).Error("Failed assembling the simulation worker")
		os.Exit(-1)
	}
	if err := w.Run(ctx); err != nil {
		log.WithError(err).Error("Worker failed")
		os.Exit(1)
	}
}
