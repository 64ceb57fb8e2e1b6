/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgillich/xqueue-client/internal"
	"github.com/pgillich/xqueue-client/internal/model"
	"github.com/pgillich/xqueue-client/internal/stub"
)

// stubCmd represents the stub command
var stubCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "stub",
	Short: "Stub queue",
	Long:  `In-memory queue server speaking the xqueue login/submit protocol`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(cmd.Parent().Context())

		return RunService(cmd, args, newCmdViper(cmd), &internal.StubConfig{
			Command: fmt.Sprintf("%+v", cmd.Context().Value(model.CtxKeyCmd)),
		}, internal.NewStubService)
	},
}

func init() {
	rootCmd.AddCommand(stubCmd)
	stubCmd.Flags().String("listenaddr", "localhost:18040", "Listen address")
	stubCmd.Flags().String("username", "lms", "Accepted username")
	stubCmd.Flags().String("password", "", "Accepted password")
	stubCmd.Flags().String("prefix", stub.DefaultPrefix, "Path prefix of the queue")
	stubCmd.Flags().StringSlice("queues", nil, "Accepted queue names (all, if empty)")
	stubCmd.Flags().String("instance", "#0", "Stub instance")
	stubCmd.Flags().String("jaegerURL", "", "Jaeger collector address")
	stubCmd.Flags().String("otlpURL", "", "OTLP HTTP trace collector URL")
}
