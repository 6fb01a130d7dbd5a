// listinglab ejecuta experimentos A/B sobre listings del marketplace y decide
// qué variante de contenido gana.
//
// Uso:
//
//	listinglab create -f experiment.yaml
//	listinglab provision <id>
//	listinglab start <id>
//	listinglab collect <id> [--simulate]
//	listinglab analyze <id>
//	listinglab apply <id>
//	listinglab stop <id> [--reason text]
//	listinglab list [--status RUNNING]
//	listinglab show <id>
//	listinglab monitor [--once] [--table] [--metrics-addr :9090]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
