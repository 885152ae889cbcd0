// Command client uploads local files to a bundle server in one request.
//
//	client -a https://cloud.example -u alice [-t token] file1 [file2=remote/name] ...
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/davbundle/internal/client/cli"
	"github.com/dmitrijs2005/davbundle/internal/client/config"
	"github.com/dmitrijs2005/davbundle/internal/flagx"
)

func main() {

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := app.Run(ctx, flagx.Positional(os.Args[1:], config.ValueFlags()))
	stop()

	os.Exit(code)

}
