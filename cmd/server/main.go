package main

import (
	"github.com/scriba-app/transcribe-backend/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
