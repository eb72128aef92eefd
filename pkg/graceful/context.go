package graceful

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// exit is replaced in tests.
var exit = os.Exit

// Context returns a context that is canceled on the first SIGINT or SIGTERM,
// letting in-flight batches finish. A second signal exits the process at
// once.
func Context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Printf("Received %s, starting graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-sigChan
		log.Printf("Received %s again, exiting immediately.", sig)
		exit(1)
	}()

	return ctx, cancel
}
