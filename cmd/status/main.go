package main

import (
	"context"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/tarimas/internal/pkg/postgres"
	"github.com/airenas/tarimas/internal/pkg/statusservice"
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

	cfg := goapp.Config
	data := &statusservice.Data{}
	data.Port = cfg.GetInt("port")
	if data.Port == 0 {
		goapp.Log.Fatal().Msg("no port")
	}
	if port := cfg.GetInt("debug.port"); port > 0 {
		go utils.RunPerfEndpoint(port)
	}

	ctx := context.Background()

	dbPool, err := postgres.NewPool(ctx, cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	data.DB = db
	wsh := statusservice.NewWSConnKeeper()
	data.WSHandler = wsh

	hData := &statusservice.HandlerData{}
	hData.DB = db
	hData.WorkerCount = cfg.GetInt("status.workers")
	if hData.WorkerCount < 1 {
		hData.WorkerCount = 2
	}
	hData.WSHandler = wsh
	hData.GueClient, err = postgres.NewGueClient(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}

	goapp.Log.Info().Msg("starting handler")
	ctx, cancelFunc := context.WithCancel(context.Background())
	doneCh, err := statusservice.StartStatusHandler(ctx, hData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start status handler service")
	}

	goapp.Log.Info().Msg("starting web service")
	if err := statusservice.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	goapp.Log.Info().Msg("exit web service")
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
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
                                        
         __        __            
   _____/ /_____ _/ /___  _______
  / ___/ __/ __ ` + "`" + `/ __/ / / / ___/
 (__  ) /_/ /_/ / /_/ /_/ (__  ) 
/____/\__/\__,_/\__/\__,_/____/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/tarimas"))
}
