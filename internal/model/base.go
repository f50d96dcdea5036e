package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a nil primary key before insert. IDs are generated in the
// application instead of via gen_random_uuid() so the same models migrate on
// any gorm dialector.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Producto) BeforeCreate(_ *gorm.DB) error         { assignID(&p.ID); return nil }
func (c *Categoria) BeforeCreate(_ *gorm.DB) error        { assignID(&c.ID); return nil }
func (c *Cliente) BeforeCreate(_ *gorm.DB) error          { assignID(&c.ID); return nil }
func (s *SesionCaja) BeforeCreate(_ *gorm.DB) error       { assignID(&s.ID); return nil }
func (m *MovimientoCaja) BeforeCreate(_ *gorm.DB) error   { assignID(&m.ID); return nil }
func (v *Venta) BeforeCreate(_ *gorm.DB) error            { assignID(&v.ID); return nil }
func (i *VentaItem) BeforeCreate(_ *gorm.DB) error        { assignID(&i.ID); return nil }
func (m *MovimientoCuenta) BeforeCreate(_ *gorm.DB) error { assignID(&m.ID); return nil }
func (m *MovimientoStock) BeforeCreate(_ *gorm.DB) error  { assignID(&m.ID); return nil }
