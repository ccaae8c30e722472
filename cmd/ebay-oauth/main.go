// Package main is the entry point for the ebay-oauth CLI.
package main

import (
	"os"

	"github.com/giantswarm/oauth2-ebay/cmd/ebay-oauth/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
