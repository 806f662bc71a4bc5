package main

import (
	"context"
	"fmt"
	"os"

	"github.com/user/missoula-scraper/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(&cli.Dependencies{}).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
