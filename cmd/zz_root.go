/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/model"
)

const envPrefix = "XQUEUE"

var cfgFile string  //nolint:gochecknoglobals // cobra
var logLevel string //nolint:gochecknoglobals // cobra

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "xqueue-client",
	Short: "Submit work to an xqueue service",
	Long: `Client of the external xqueue grading queue.

Every submission logs in to the queue and posts the header, the body
and an optional file in the same session. Settings come from flags,
XQUEUE_* environment variables or a YAML config file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetLevel(logLevel)
	},
}

// Execute adds all child commands to the root command and runs it with args.
// serverRunner is used by the commands which serve HTTP.
func Execute(ctx context.Context, args []string, serverRunner model.ServerRunner) error {
	ctx = context.WithValue(ctx, model.CtxKeyCmd, strings.Join(append([]string{rootCmd.Use}, args...), " "))
	ctx = context.WithValue(ctx, model.CtxKeyServerRunner, serverRunner)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		logger.GetLogger(rootCmd.Use).Error(err, "Bad", "args", args)

		return err
	}

	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.xqueue-client.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "logLevel", "info", "Log level (trace, debug, info, warning, error)")
}

// initConfig reads in config file if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".xqueue-client")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.GetLogger(rootCmd.Use).Info("Using config file", "path", viper.ConfigFileUsed())
	}
}

// newCmdViper returns a command-scoped viper bound to the command flags
// and to the XQUEUE_* environment variables.
func newCmdViper(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		logger.GetLogger(cmd.Use).Error(err, "Unable to bind flags")
		panic(err)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return v
}

// RunService merges the config file settings under v, unmarshals v into config
// and runs the service built by newService.
func RunService(cmd *cobra.Command, args []string, v *viper.Viper, config interface{}, newService model.NewService) error {
	commandLine := cmd.Context().Value(model.CtxKeyCmd)
	log := logger.GetLogger(cmd.Use).WithValues(logger.KeyCmd, commandLine)

	if err := v.MergeConfigMap(viper.AllSettings()); err != nil {
		return errors.Wrap(err, "merge config")
	}
	if err := v.Unmarshal(config); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}

	ctx := context.WithValue(cmd.Context(), model.CtxKeyOutput, cmd.OutOrStdout())

	return errors.Wrap(newService(ctx, config, log).Run(args), "service run")
}
