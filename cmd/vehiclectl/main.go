package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/greenroad/vehiclectl/internal/config"
	"github.com/greenroad/vehiclectl/internal/controller"
	"github.com/greenroad/vehiclectl/internal/observability"
)

func main() {
	configPath := flag.String("config", "vehiclectl.toml", "path to controller config")
	flag.Parse()

	observability.InitLogger("vehiclectl")

	cfg, err := config.LoadControllerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vehiclectl: %v\n", err)
		os.Exit(1)
	}

	svc := controller.NewService(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "vehiclectl: %v\n", err)
		os.Exit(1)
	}
}
