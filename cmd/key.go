/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgillich/xqueue-client/internal/xqueue"
)

// keyCmd represents the key command
var keyCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "key [seed]",
	Short: "Print a new LMS key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := ""
		if len(args) > 0 {
			seed = args[0]
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), xqueue.MakeKey(seed))

		return err //nolint:wrapcheck // stdout
	},
}

// headerCmd represents the header command
var headerCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "header",
	Short: "Print a submission header",
	Long:  `Print the JSON header which routes the queue reply back to the LMS`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := newCmdViper(cmd)
		_, err := fmt.Fprintln(cmd.OutOrStdout(),
			xqueue.MakeHeader(v.GetString("callbackURL"), v.GetString("key"), v.GetString("queue")))

		return err //nolint:wrapcheck // stdout
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(headerCmd)
	headerCmd.Flags().String("callbackURL", "", "LMS callback URL")
	headerCmd.Flags().String("key", "", "LMS key")
	headerCmd.Flags().String("queue", "", "Queue name")
}
