package main

import (
	"log"

	corecmd "github.com/m3rciful/weatherbot/core/cmd"
	"github.com/m3rciful/weatherbot/internal/app"
	"github.com/m3rciful/weatherbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{".env"},
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*config.AppConfig))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
