package main

import (
	"log"

	"github.com/oliver-JPS/Portal-com-Login/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
