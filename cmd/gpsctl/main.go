package main

import (
	"fmt"
	"os"

	"github.com/greenroad/vehiclectl/internal/gpsagent"
	"github.com/greenroad/vehiclectl/internal/observability"
)

func main() {
	observability.InitLogger("gpsctl")

	svc := gpsagent.NewService()
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gpsctl: %v\n", err)
		os.Exit(1)
	}
}
