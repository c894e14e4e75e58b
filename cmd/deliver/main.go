// Command deliver serves a document root with the deliver pipeline.
//
// Configuration is read from --config=file.json, ENV_ variables and
// --path=value args, such as:
//
//	deliver --root=./public --ports.http=8080 --gzip --dev
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/eudore/deliver"
)

func main() {
	config := deliver.NewConfig()
	ctx := context.WithValue(context.Background(), deliver.ContextKeyLogger, deliver.NewLogger(&config.Logger))
	if err := config.Parse(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := deliver.NewApp(config)
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
