package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/canopyrisk/stormsim/internal/stormsim"
	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/trigger"
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

	publisher, err := trigger.NewPublisher(config.Pulsar)
	if err != nil {
		log.WithError(err).Error("Failed connecting to pulsar")
		os.Exit(-1)
	}
	defer publisher.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.HttpPort),
		Handler: trigger.NewServer(publisher),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Infof("Trigger listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("Trigger server failed")
		os.Exit(1)
	}
}
