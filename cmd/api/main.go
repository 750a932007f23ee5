package main

import (
	"log"

	"visit-tracker/cmd"
)

// @title           Site Visit Tracker API
// @version         1.0
// @description     Customers request on-site or remote support against prepaid hours; staff approve, schedule and record visits.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
