package main

import "github.com/facegate/facegate/cmd"

// @title                       facegate API
// @version                     1.0
// @description                 Account registration with password and face enrolment; password and face login.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cmd.Execute()
}
