// Command radarctl imports user CSV snapshots, reports import status and
// records crowd speed votes from the command line.
package main

import (
	"context"
	"os"

	"radarsync/internal/config"
	"radarsync/pkg/graceful"
)

func main() {
	config.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
