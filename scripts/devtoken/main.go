package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/jwt"
)

// devtoken prints a signed bearer token for local testing, using the same
// JWT settings the server loads.
func main() {
	user := flag.String("user", "dev", "user id")
	role := flag.String("role", string(models.RoleAdmin), "admin, principal, hod or teacher")
	teacher := flag.String("teacher", "", "teacher id for teacher accounts")
	ttl := flag.Duration("ttl", 0, "override token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *ttl > 0 {
		cfg.JWT.Expiration = *ttl
	}

	manager, err := jwt.NewManager(cfg.JWT)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	token, expires, err := manager.Generate(*user, models.UserRole(*role), *teacher)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires %s", expires.Format(time.RFC3339))
}
