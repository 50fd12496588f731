package main

import (
	"log"

	"github.com/strayaid/rescuedispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
