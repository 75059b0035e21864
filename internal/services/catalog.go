package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/gate"
	"github.com/mrosario/funeraria/internal/domain"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/validation"
)

// CatalogInput is the payload for creating a catalog entry.
type CatalogInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CatalogService reads the sellable items catalog. The contract subsystem
// never mutates it; creation is an admin capability.
type CatalogService struct {
	db   *gorm.DB
	gate *gate.Gate[*models.User]
}

func NewCatalogService(db *gorm.DB, g *gate.Gate[*models.User]) *CatalogService {
	return &CatalogService{db: db, gate: g}
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.ServiceItem, error) {
	var item models.ServiceItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "service_item", ID: id}
		}
		return nil, err
	}
	return &item, nil
}

func (s *CatalogService) List(ctx context.Context) ([]models.ServiceItem, error) {
	var items []models.ServiceItem
	if err := s.db.WithContext(ctx).Order("name asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *CatalogService) Create(ctx context.Context, in CatalogInput, actor *models.User) (*models.ServiceItem, error) {
	if err := s.gate.Authorize(ctx, actor, gate.ActionCreate, "catalog", nil); err != nil {
		return nil, &domain.PermissionError{Action: "create catalog item"}
	}
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.NonNegativeDecimal("unit_price", in.UnitPrice, v)
	if !v.Empty() {
		return nil, &domain.ValidationError{Fields: v}
	}
	item := models.ServiceItem{Name: in.Name, Description: in.Description, UnitPrice: in.UnitPrice}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
