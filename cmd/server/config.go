// Config loading for the circulation server.
//
// Configuration comes from an optional config.yaml next to the binary (or
// a directory named by -config), environment variables prefixed with
// BIBLIOTECA_, and command-line flags. Flags win over environment, which
// wins over the file.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "BIBLIOTECA"

	cfgKeyPort   = "port"
	cfgKeyDBPath = "db_path"

	defaultPort   = 8080
	defaultDBPath = "biblioteca.db"
)

// loadConfig reads config.yaml from the given directory using Viper.
// A missing config file is not an error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyPort, defaultPort)
	v.SetDefault(cfgKeyDBPath, defaultDBPath)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}
