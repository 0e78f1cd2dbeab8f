// Command token mints a cashier token signed with the service's JWT key, for
// terminals and smoke tests in environments without the auth service.
//
//	go run ./cmd/token -user 7 -email cashier@example.com -role cashier
package main

import (
	"flag"
	"fmt"
	"os"

	"sale-service/pkg/config"
	"sale-service/pkg/jwtutil"
)

func main() {
	userID := flag.Uint("user", 0, "user id carried as the sale actor")
	email := flag.String("email", "", "user email")
	role := flag.String("role", "cashier", "user role")
	flag.Parse()

	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	token, err := jwtutil.NewJWTUtil(&cfg.JWT).GenerateToken(*userID, *email, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
