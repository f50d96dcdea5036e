// cmd/seed/main.go — Carga categorías, productos y clientes de demo.
// Uso: go run ./cmd/seed
package main

import (
	"errors"
	"fmt"
	"os"

	"posledger/internal/config"
	"posledger/internal/infra"
	"posledger/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type productoSeed struct {
	codigo, nombre, precio, iva string
	stock, minimo               int
}

var catalogo = map[string][]productoSeed{
	"Almacén": {
		{"7790001000011", "Yerba 1kg", "3200.00", "21", 40, 10},
		{"7790001000028", "Azúcar 1kg", "1150.00", "21", 60, 15},
		{"7790001000035", "Fideos 500g", "950.00", "10.5", 80, 20},
	},
	"Bebidas": {
		{"7790001000042", "Agua 2L", "800.00", "21", 50, 12},
		{"7790001000059", "Gaseosa 1.5L", "1900.00", "21", 30, 10},
	},
}

var clientes = []model.Cliente{
	{Nombre: "Consumidor habitual", Activo: true},
	{Nombre: "Almacén La Esquina", Activo: true, LimiteCredito: decimal.NewFromInt(50000)},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for nombreCat, productos := range catalogo {
			cat := model.Categoria{Nombre: nombreCat}
			if err := tx.Where("nombre = ?", nombreCat).FirstOrCreate(&cat).Error; err != nil {
				return err
			}
			for _, p := range productos {
				codigo := p.codigo
				var existente model.Producto
				err := tx.Where("codigo_barras = ?", codigo).First(&existente).Error
				if err == nil {
					continue
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				nuevo := model.Producto{
					CodigoBarras: &codigo,
					Nombre:       p.nombre,
					CategoriaID:  &cat.ID,
					Precio:       decimal.RequireFromString(p.precio),
					TasaIVA:      decimal.RequireFromString(p.iva),
					Stock:        p.stock,
					StockMinimo:  p.minimo,
				}
				if err := tx.Create(&nuevo).Error; err != nil {
					return err
				}
			}
		}
		for i := range clientes {
			c := clientes[i]
			if err := tx.Where("nombre = ?", c.Nombre).FirstOrCreate(&c).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	fmt.Println("✅ Datos de demo cargados")
}
