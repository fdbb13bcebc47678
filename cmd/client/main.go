package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/userkeeper/internal/client/cli"
	"github.com/dmitrijs2005/userkeeper/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	os.Exit(app.Run(context.Background(), os.Args[1:]))

}
