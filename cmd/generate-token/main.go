package main

import (
	"os"

	"github.com/ComprosoftCEO/lines-of-battle/internal/cmd/generatetoken"
	"github.com/ComprosoftCEO/lines-of-battle/internal/platform/config"
)

func main() {
	cfg, err := generatetoken.ParseConfig(os.Args[1:])
	if err != nil {
		config.Exitf("%v", err)
	}
	if err := generatetoken.Run(cfg); err != nil {
		config.Exitf("%v", err)
	}
}
