package main // Entry point package

import (
	"os"
	_ "time/tzdata" // BUSINESS_TIMEZONE must resolve on minimal images

	"github.com/iliyamo/sound-rental/cmd/server/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
