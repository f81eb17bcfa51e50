package configuration

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig reads the application configuration from the default path and
// merges any user-specified override files on top, then unmarshals into
// config.
func LoadConfig(config *StormSimConfiguration, defaultPath string, overrideConfigs []string) error {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading config from %s", defaultPath)
	}
	log.Infof("Read config from %s", v.ConfigFileUsed())

	for _, override := range overrideConfigs {
		v.SetConfigFile(override)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "merging config file %s", override)
		}
		log.Infof("Merged config from %s", override)
	}

	if err := v.Unmarshal(config); err != nil {
		return errors.Wrap(err, "unmarshalling configuration")
	}
	return nil
}
