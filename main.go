package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"rehost/handlers"
	"rehost/pkg/conf"
	"rehost/pkg/logger"
	"rehost/pkg/metrics"
	"rehost/pkg/resolver"
	"rehost/pkg/rewriter"
)

var log = logger.GetLogger("main")

func main() {
	parser := argparse.NewParser("rehost", "Host a website with automatic domain rewriting")
	domain := parser.StringPositional(&argparse.Options{
		Help: "The original domain to rewrite (e.g. originaldomain.com)",
	})
	port := parser.Int("p", "port", &argparse.Options{
		Help: "Port to listen on (default: 8000)",
	})
	directory := parser.String("d", "directory", &argparse.Options{
		Help: "Root directory of the website files (default: current directory)",
	})
	host := parser.String("H", "host", &argparse.Options{
		Help: "Host to bind to (default: 0.0.0.0)",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Help: "Path to a yaml config file",
	})
	metricsAddr := parser.String("m", "metrics-addr", &argparse.Options{
		Help: "Expose prometheus metrics on this address (disabled when empty)",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	// flags win over the config file, the config file over the environment
	cfg := conf.Default()
	if *configPath != "" {
		var err error
		if cfg, err = conf.Load(*configPath); err != nil {
			log.Fatal().Err(err).Msg("could not load config file")
		}
	}
	if *domain != "" {
		cfg.Domain = *domain
	}
	if *directory != "" {
		cfg.Directory = *directory
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *metricsAddr != "" {
		cfg.MetricsAddress = *metricsAddr
	}

	rw, err := rewriter.New(cfg.Domain, cfg.Directory)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	res, err := resolver.New(rw.ContentRoot())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.MetricsAddress != "" {
		go func() {
			log.Info().Msgf("metrics listening on '%s'", cfg.MetricsAddress)
			if err := metrics.Serve(cfg.MetricsAddress); err != nil {
				log.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Get("/*", handlers.ServeSite(rw, res))

	log.Info().Msgf("serving %s from %s on http://%s", rw.OriginalDomain, rw.ContentRoot(), cfg.ListenAddress())
	if err := app.Listen(cfg.ListenAddress()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
