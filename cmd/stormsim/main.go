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

	engine, err := stormsim.NewEngine(config)
	if err != nil {
		log.WithError(err).Error("Failed assembling the simulation engine")
		os.Exit(-1)
	}
	defer engine.Close()

	if err := engine.Run(ctx); err != nil {
		log.WithError(err).Error("Simulation run finished with errors")
		os.Exit(1)
	}
	log.Info("Simulation run complete")
}
