package devapi

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/model"
)

// Seeded accounts
const (
	SeedAdminEmail       = "admin@storefront.local"
	SeedAdminPassword    = "admin-password"
	SeedCustomerEmail    = "customer@storefront.local"
	SeedCustomerPassword = "customer-password"
)

type seedProduct struct {
	sku, name, short string
	price            string
	stock            int
	category, brand  string
	available        bool
	image            string
}

var seedProducts = []seedProduct{
	{"LAMP-001", "Desk Lamp", "Adjustable LED desk lamp", "24.99", 40, "Home", "Lumen", true, "https://img.storefront.local/lamp.jpg"},
	{"MUG-001", "Stoneware Mug", "350ml glazed mug", "9.50", 100, "Home", "Kiln & Co", true, ""},
	{"KB-001", "Mechanical Keyboard", "Tenkeyless, brown switches", "89.00", 15, "Electronics", "Keystone", true, "https://img.storefront.local/keyboard.jpg"},
	{"HP-001", "Wireless Headphones", "Over-ear, noise cancelling", "149.00", 8, "Electronics", "Keystone", true, ""},
	{"BK-001", "Go in Practice", "Field guide to production Go", "39.95", 25, "Books", "Paper Lane", true, ""},
	{"BK-002", "Distributed Systems Notes", "Out of print", "29.00", 0, "Books", "Paper Lane", false, ""},
}

func (s *Server) seed() error {
	for _, acc := range []struct {
		email, password, name, role string
	}{
		{SeedAdminEmail, SeedAdminPassword, "Store Admin", model.RoleAdmin},
		{SeedCustomerEmail, SeedCustomerPassword, "Demo Customer", model.RoleCustomer},
	} {
		hash, err := s.hasher.Hash(acc.password)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}
		if _, err := s.data.CreateUser(model.User{Email: acc.email, FullName: acc.name, Role: acc.role}, hash); err != nil {
			return err
		}
	}

	categories := make(map[string]int64)
	brands := make(map[string]int64)
	for _, p := range seedProducts {
		if _, ok := categories[p.category]; !ok {
			c, err := s.data.CreateCategory(p.category)
			if err != nil {
				return err
			}
			categories[p.category] = c.ID
		}
		if _, ok := brands[p.brand]; !ok {
			b, err := s.data.CreateBrand(p.brand)
			if err != nil {
				return err
			}
			brands[p.brand] = b.ID
		}

		created, err := s.data.CreateProduct(model.Product{
			SKU:              p.sku,
			Name:             p.name,
			ShortDescription: p.short,
			Price:            decimal.RequireFromString(p.price),
			Available:        p.available,
			CategoryID:       categories[p.category],
			BrandID:          brands[p.brand],
			Stock:            p.stock,
		})
		if err != nil {
			return err
		}
		if p.image != "" {
			if _, err := s.data.AddImage(created.ID, model.ProductImage{ImageURL: p.image, AltText: p.name}); err != nil {
				return err
			}
		}
	}

	log.Printf("[DevAPI] Seeded 2 users, %d categories, %d brands, %d products", len(categories), len(brands), len(seedProducts))
	return nil
}
