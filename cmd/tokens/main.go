// Package main is the entry point for the token service.
package main

import (
	"log"

	"github.com/aussiebroadwan/tabtoken/cmd/tokens/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
