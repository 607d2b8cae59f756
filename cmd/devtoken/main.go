// Command devtoken prints a bearer token for local testing. Login lives in
// another service; this stands in for it against a dev environment.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/crisb2reis/Sistema-Escolar/internal/auth"
	"github.com/crisb2reis/Sistema-Escolar/internal/config"
)

func main() {
	sub := flag.String("sub", "", "user id (random uuid when empty)")
	roleName := flag.String("role", "teacher", "student, teacher or admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if cfg.Production() {
		logrus.Fatal("refusing to mint tokens in production")
	}

	role, err := auth.ParseRole(*roleName)
	if err != nil {
		logrus.WithError(err).Fatal("bad role")
	}
	if *sub == "" {
		*sub = uuid.NewString()
	}

	token, exp, err := auth.Issue(*sub, role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
	if err != nil {
		logrus.WithError(err).Fatal("issue token")
	}
	fmt.Fprintf(os.Stderr, "sub=%s role=%s expires=%s\n", *sub, role, exp.Format("15:04:05"))
	fmt.Println(token)
}
