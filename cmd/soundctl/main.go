package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/observability"
	"github.com/greenroad/vehiclectl/internal/soundagent"
)

func main() {
	configPath := flag.String("config", "", "optional path to sound agent config")
	flag.Parse()

	observability.InitLogger("soundctl")

	var cfg config.SoundConfig
	if *configPath != "" {
		loaded, err := config.LoadSoundConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "soundctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := soundagent.NewService(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "soundctl: %v\n", err)
		os.Exit(1)
	}
}
