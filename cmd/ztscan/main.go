package main

import (
	"log"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
