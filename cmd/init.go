package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/minver/internal/config"
)

var forceInit bool

// initCmd: minver init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile, forceInit)
		if err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
}

func initConfigurationFile(configurationPath string, force bool) (string, error) {
	if configurationPath == "" {
		configurationPath = config.FileNames[0]
	}
	if !force {
		if _, err := os.Stat(configurationPath); err == nil {
			return "", fmt.Errorf("%s already exists, use --force to overwrite", configurationPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	f, err := os.Create(configurationPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := config.Default().WriteTo(f); err != nil {
		return "", err
	}
	return configurationPath, f.Close()
}
