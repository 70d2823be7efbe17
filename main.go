package main

import (
	"flag"

	"ACDB/bootstrap"

	"github.com/sirupsen/logrus"
)

func main() {
	flag.Parse()
	if _, err := bootstrap.Run(); err != nil {
		logrus.WithError(err).Fatal("acdb service stopped")
	}
}
