package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/platzigram/platzigram-db/internal/app"
	"github.com/platzigram/platzigram-db/internal/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: platzigram-db <%s> [-c config.json] [flags]\n", strings.Join(app.Commands, "|"))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(os.Args[2:])
	if err != nil {
		log.Printf("%v", err)
		os.Exit(2)
	}

	a := app.NewApp(cfg)
	if err := a.Run(context.Background(), os.Args[1]); err != nil {
		if errors.Is(err, app.ErrUnknownCommand) {
			usage()
			os.Exit(2)
		}
		log.Printf("%v", err)
		os.Exit(1)
	}
}
