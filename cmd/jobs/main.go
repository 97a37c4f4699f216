package main

import (
	"context"

	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/assessment"
	"github.com/airenas/tarimas/internal/pkg/callback"
	"github.com/airenas/tarimas/internal/pkg/config"
	"github.com/airenas/tarimas/internal/pkg/ipagen"
	"github.com/airenas/tarimas/internal/pkg/jobs"
	"github.com/airenas/tarimas/internal/pkg/postgres"
	"github.com/airenas/tarimas/internal/pkg/runpod"
	"github.com/airenas/tarimas/internal/pkg/service"
	"github.com/airenas/tarimas/internal/pkg/storage"
	"github.com/airenas/tarimas/internal/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/color"
)

func main() {
	if err := godotenv.Load(); err == nil {
		goapp.Log.Info().Msg("loaded .env")
	}
	goapp.StartWithDefault()

	printBanner()

	cfg, err := config.Load(goapp.Config)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("wrong config")
	}
	if port := goapp.Config.GetInt("debug.port"); port > 0 {
		go utils.RunPerfEndpoint(port)
	}

	ctx := context.Background()

	dbPool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	if goapp.Config.GetBool("db.migrate") {
		if err := db.Migrate(ctx); err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't migrate db")
		}
	}
	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init sender")
	}

	worker, err := runpod.NewClient(cfg.Worker.URL, cfg.Worker.Key, cfg.Worker.Timeout)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init worker client")
	}
	resolver, err := callback.NewResolver(cfg.Callback, cfg.Worker.URL)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init webhook resolver")
	}
	mc, err := storage.NewMinioClient(cfg.Filer)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init minio client")
	}
	links, err := storage.NewLinks(mc, cfg.Filer, cfg.Worker.URL)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init audio links")
	}

	assessmentKind, err := assessment.NewKind(db, links, cfg.Worker.AssessmentEndpoint)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init assessment")
	}
	ipaKind, err := ipagen.NewKind(db, links, cfg.Worker.GenerationEndpoint)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init ipa generation")
	}
	manager, err := jobs.NewManager(db, worker, resolver, sender, assessmentKind, ipaKind,
		jobs.NewGeneric(cfg.Worker.AssessmentEndpoint))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init job manager")
	}

	data := &service.Data{Port: cfg.Port, Jobs: manager, Analyses: db, References: db, Live: db}
	endpoint, secure, err := storage.Endpoint(cfg.Filer)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file reader")
	}
	data.Reader, err = miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.Filer.Bucket,
		URL: endpoint, User: cfg.Filer.User, Key: cfg.Filer.Key, Secure: secure})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file reader")
	}

	if err := service.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
  __                  _                     
 / /_____ ______(_)___ ___  ____ ______
/ __/ __ ` + "`" + `/ ___/ / __ ` + "`" + `__ \/ __ ` + "`" + `/ ___/
/ /_/ /_/ / /  / / / / / / / /_/ (__  ) 
\__/\__,_/_/  /_/_/ /_/ /_/\__,_/____/  
                                        
     _       __        
    (_)___  / /_  _____
   / / __ \/ __ \/ ___/
  / / /_/ / /_/ (__  ) 
 / /\____/_.___/____/  v: %s
/___/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/tarimas"))
}
