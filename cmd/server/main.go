package main

import (
	"context"
	"log"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
