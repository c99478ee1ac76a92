package main

import (
	"log"

	"yashubustudio/logcompliance/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
