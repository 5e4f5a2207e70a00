package main

import (
	"flag"
	"log"
	"os"

	"github.com/ComprosoftCEO/lines-of-battle/internal/cmd/checkrules"
)

func main() {
	cfg, err := checkrules.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CHECK-RULES] ")

	if err := checkrules.Run(cfg); err != nil {
		log.Fatalf("game engine check failed: %v", err)
	}
}
