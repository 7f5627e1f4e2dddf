// Command placekit manages a collection of placed 3D objects, persists it to
// a local blob, and mirrors it to a remote record store.
package main

import (
	"os"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
