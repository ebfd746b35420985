// greywl is the one-shot whitelist importer: it reads a JSON whitelist
// source and writes its entries into any store the daemon can use, so
// whitelists can be provisioned without restarting greyd.
package main

import (
	"flag"
	"log/slog"
	"os"

	"greyd/internal/logging"
	"greyd/internal/store"
	"greyd/internal/whitelist"
)

func main() {
	source := flag.String("source", "", "whitelist source (file path or file:// locator)")
	db := flag.String("db", "", "destination store locator")
	allowRegex := flag.Bool("allow-regex", false, "accept regex pattern entries")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logging.Init(*logLevel, "text")
	log := logging.For("greywl")

	if *source == "" || *db == "" {
		slog.Error("both -source and -db are required")
		flag.Usage()
		os.Exit(2)
	}

	lists, err := whitelist.Load(*source, *allowRegex)
	if err != nil {
		log.Error("reading whitelist source", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(*db)
	if err != nil {
		log.Error("opening store", "error", err)
		os.Exit(1)
	}

	n, err := whitelist.Import(st, lists)
	if err != nil {
		log.Error("importing whitelists", "written", n, "error", err)
		os.Exit(1)
	}
	log.Info("import complete", "lists", len(lists), "entries", n)
}
