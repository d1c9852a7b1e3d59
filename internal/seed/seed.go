// Package seed loads the demo users and catalogue.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPassword = "password123"

// Target is implemented by postgres.Store and memory.Store.
type Target interface {
	CreateUser(ctx context.Context, u *auth.User) error
	CreateProduct(ctx context.Context, p *orders.Product) error
	HasProducts(ctx context.Context) (bool, error)
}

func Users() []auth.User {
	return []auth.User{
		{Name: "Admin User", Email: "admin@ecommerce.com"},
		{Name: "Test User", Email: "test@ecommerce.com"},
	}
}

func Products() []orders.Product {
	return []orders.Product{
		{
			Name:        "Laptop ASUS ROG Strix G15",
			Description: "Gaming laptop dengan processor Intel i7-11800H dan GPU RTX 3050",
			Price:       decimal.NewFromInt(15000000),
			Stock:       10,
			IsActive:    true,
		},
		{
			Name:        "Smartphone Samsung Galaxy S23",
			Description: "Flagship smartphone dengan camera 108MP dan processor Snapdragon 8 Gen 2",
			Price:       decimal.NewFromInt(12000000),
			Stock:       15,
			IsActive:    true,
		},
		{
			Name:        "Headphone Sony WH-1000XM4",
			Description: "Wireless noise cancelling headphone dengan battery life 30 jam",
			Price:       decimal.NewFromInt(3500000),
			Stock:       20,
			IsActive:    true,
		},
		{
			Name:        "Apple Watch Series 8",
			Description: "Smartwatch dengan ECG dan blood oxygen monitoring",
			Price:       decimal.NewFromInt(6500000),
			Stock:       8,
			IsActive:    true,
		},
		{
			Name:        "iPad Air 5th Generation",
			Description: "Tablet dengan chip M1 dan layar Liquid Retina 10.9 inch",
			Price:       decimal.NewFromInt(8500000),
			Stock:       12,
			IsActive:    true,
		},
	}
}

// Run is safe to repeat: existing users are kept and products are only
// inserted into an empty catalogue.
func Run(ctx context.Context, t Target, bcryptCost int) error {
	log := logging.FromContext(ctx)

	hash, err := auth.HashPassword(DefaultPassword, bcryptCost)
	if err != nil {
		return err
	}
	for _, u := range Users() {
		u.PasswordHash = hash
		err := t.CreateUser(ctx, &u)
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			log.Info("seed user exists", zap.String("email", u.Email))
		case err != nil:
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		default:
			log.Info("seed user created", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
		}
	}

	has, err := t.HasProducts(ctx)
	if err != nil {
		return err
	}
	if has {
		log.Info("catalogue not empty, skipping products")
		return nil
	}
	for _, p := range Products() {
		if err := t.CreateProduct(ctx, &p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}
	log.Info("seed products created", zap.Int("count", len(Products())))
	return nil
}
