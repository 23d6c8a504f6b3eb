package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/sqlbots/dashboard/internal/account"
	"github.com/sqlbots/dashboard/internal/config"
	"github.com/sqlbots/dashboard/internal/discord"
	"github.com/sqlbots/dashboard/internal/es"
	"github.com/sqlbots/dashboard/internal/events"
	"github.com/sqlbots/dashboard/internal/handlers"
	"github.com/sqlbots/dashboard/internal/httpserver"
	"github.com/sqlbots/dashboard/internal/license"
	"github.com/sqlbots/dashboard/internal/logging"
	"github.com/sqlbots/dashboard/internal/middleware/loggingmw"
	"github.com/sqlbots/dashboard/internal/search"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	config.MustNonEmpty(cfg.JWT_SECRET, "JWT_SECRET")
	config.MustNonEmpty(cfg.DB_HOST, "DB_HOST")

	logger := logging.New(cfg.LOG_LEVEL)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("initializing DB: %v", err)
	}

	producer := events.NewProducer(config.CSV(cfg.KAFKA_ADDRESS))
	defer producer.Close()

	searchHandler := handlers.NewSearchHandler(nil, search.TaskIndex)
	if cfg.ES_URL != "" {
		client, err := es.NewClient(cfg)
		if err != nil {
			log.Fatalf("initializing Elasticsearch: %v", err)
		}
		searchHandler = handlers.NewSearchHandler(client, search.TaskIndex)
	}

	jwtSecret := []byte(cfg.JWT_SECRET)
	ledger := &license.Ledger{DB: db}
	accounts := &account.Service{DB: db, Ledger: ledger}
	discordClient := discord.NewClient()

	deps := &httpserver.Deps{
		JWTSecret: jwtSecret,
		AuthHandler: &handlers.AuthHandler{
			DB:        db,
			JWTSecret: jwtSecret,
			Accounts:  accounts,
			Producer:  producer,
		},
		LicenseHandler: &handlers.LicenseHandler{DB: db, Ledger: ledger},
		TaskHandler: &handlers.TaskHandler{
			DB:       db,
			Producer: producer,
			ES:       searchHandler.ES,
			ESIndex:  search.TaskIndex,
			Discord:  discordClient,
		},
		SettingsHandler: &handlers.SettingsHandler{DB: db, Discord: discordClient},
		MachineHandler:  &handlers.MachineHandler{DB: db},
		SearchHandler:   searchHandler,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, deps)

	addr := fmt.Sprintf(":%d", cfg.SERVER_PORT)
	logger.Info("starting server", "addr", addr)
	e.Logger.Fatal(e.Start(addr))
}
