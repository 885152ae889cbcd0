// Command token mints an access token for a user with the server's secret.
//
//	token [-s secret] [-t minutes] [-c config.json] <user>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/davbundle/internal/flagx"
	"github.com/dmitrijs2005/davbundle/internal/server/auth"
	"github.com/dmitrijs2005/davbundle/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	users := flagx.Positional(os.Args[1:], config.ValueFlags())
	if len(users) != 1 {
		log.Fatalf("usage: %s [flags] <user>", os.Args[0])
	}

	token, err := auth.GenerateToken(users[0], []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(token)

}
