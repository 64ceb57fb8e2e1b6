/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgillich/xqueue-client/internal"
	"github.com/pgillich/xqueue-client/internal/model"
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "submit [body]",
	Short: "Submit",
	Long: `Log in to the queue and submit a request.

The body is taken from --bodyFile, --body or the first argument.
On success the lms_key of the submission is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(cmd.Parent().Context())

		return RunService(cmd, args, newCmdViper(cmd), &internal.SubmitConfig{
			Command: fmt.Sprintf("%+v", cmd.Context().Value(model.CtxKeyCmd)),
		}, internal.NewSubmitterService)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().String("endpoint", "http://localhost:18040/xqueue", "Queue base URL")
	submitCmd.Flags().String("username", "lms", "Queue username")
	submitCmd.Flags().String("password", "", "Queue password")
	submitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout of each HTTP call")
	submitCmd.Flags().String("queue", "", "Queue name")
	submitCmd.Flags().String("callbackURL", "", "LMS callback URL")
	submitCmd.Flags().String("key", "", "LMS key (generated if empty)")
	submitCmd.Flags().String("keySeed", "", "Seed of the generated LMS key")
	submitCmd.Flags().String("body", "", "Submission body")
	submitCmd.Flags().String("bodyFile", "", "File holding the submission body")
	submitCmd.Flags().String("file", "", "File to attach")
	submitCmd.Flags().String("instance", "#1", "Client instance")
	submitCmd.Flags().String("jaegerURL", "", "Jaeger collector address")
	submitCmd.Flags().String("otlpURL", "", "OTLP HTTP trace collector URL")
}
