/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"os"

	"github.com/pgillich/xqueue-client/cmd"
	"github.com/pgillich/xqueue-client/internal"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	err := cmd.Execute(ctx, os.Args[1:], internal.RunServer)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
