// cmd/gentoken/main.go — Firma un token de operador para desarrollo.
// Uso: go run ./cmd/gentoken -rol supervisor -usuario ana
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"posledger/internal/config"
	"posledger/internal/middleware"

	"github.com/google/uuid"
)

func main() {
	rol := flag.String("rol", middleware.RolCajero, "cajero | supervisor | administrador")
	usuario := flag.String("usuario", "demo", "nombre de usuario")
	id := flag.String("id", "", "UUID del usuario (default: uno nuevo)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	ttl := time.Duration(cfg.JWTExpirationHours) * time.Hour
	token, err := middleware.FirmarToken(cfg.JWTSecret, *id, *usuario, *rol, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "firmar: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
