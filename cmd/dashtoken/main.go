// Command dashtoken mints a bearer token for the error dashboard using the
// configured dashboard.jwt_secret.
package main

import (
	"flag"
	"fmt"
	"os"

	"readly/internal/config"
	"readly/internal/service"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to dashboard.token_ttl)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	authService, err := service.NewDashboardAuthService(cfg.Dashboard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create dashboard auth service: %v\n", err)
		os.Exit(1)
	}

	token, err := authService.CreateToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
