package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/conorfennell/deckserve/internal/config"
	"github.com/conorfennell/deckserve/internal/importer"
	"github.com/conorfennell/deckserve/internal/storage"
	"github.com/conorfennell/deckserve/internal/web"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	defaults := config.Default()
	flags := pflag.NewFlagSet("deckserve", pflag.ExitOnError)
	flags.String("config", "", "Path to the YAML config file")
	flags.String("server.addr", defaults.Server.Addr, "HTTP listen address")
	flags.String("database.path", defaults.Database.Path, "Path to the SQLite database file")
	flags.String("media.dir", defaults.Media.Dir, "Media asset directory")
	flags.String("client.dir", defaults.Client.Dir, "Client bundle directory")
	flags.String("sources.repos_dir", defaults.Sources.ReposDir, "Checkout directory for git card sources")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse flags")
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("database opened")

	pipeline := importer.New(db, log, cfg.Media.Dir, cfg.Sources.ReposDir, cfg.Import.Tokenize)

	server := web.NewServer(db, pipeline, log, web.Options{
		ClientDir:      cfg.Client.Dir,
		MediaDir:       cfg.Media.Dir,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
	})

	log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
	if err := http.ListenAndServe(cfg.Server.Addr, server.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
