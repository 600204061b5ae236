package main

import (
	"log"

	"github.com/sweeply/sweeply/cmd/sweeply"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	sweeply.Execute()
}
