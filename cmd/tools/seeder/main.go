package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	redis "github.com/redis/go-redis/v9"

	"github.com/pasarhq/backend-pasar/internal/catalog"
)

// Seeds a demo store with one location, a small product range and a few
// coupons so the cart API can be exercised locally.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	storeID := seedStore(db)
	locationID := seedLocation(db, storeID)
	seedProducts(db, locationID)
	seedCoupons(db, locationID)
	invalidateCache(locationID)

	log.Println("Seeding completed successfully!")
}

func seedStore(db *sql.DB) uuid.UUID {
	var id uuid.UUID
	err := db.QueryRow(`SELECT id FROM stores WHERE name = 'Pasar Demo Store'`).Scan(&id)
	if err == nil {
		return id
	}
	err = db.QueryRow(`
		INSERT INTO stores (name, currency) VALUES ('Pasar Demo Store', 'USD')
		RETURNING id;
	`).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed store: %v", err)
	}
	log.Printf("Created store %s", id)
	return id
}

func seedLocation(db *sql.DB, storeID uuid.UUID) uuid.UUID {
	destinations, _ := json.Marshal([]map[string]any{
		{"name": "Downtown", "fee": 300, "freeDelivery": false},
		{"name": "Harbor", "fee": 0, "freeDelivery": true},
		{"name": "Uptown", "fee": 500, "freeDelivery": false},
	})

	var id uuid.UUID
	err := db.QueryRow(`SELECT id FROM locations WHERE name = 'Main Branch'`).Scan(&id)
	if err == nil {
		return id
	}
	err = db.QueryRow(`
		INSERT INTO locations (store_id, name, allow_free_delivery, delivery_fee, destinations)
		VALUES ($1, 'Main Branch', FALSE, 500, $2)
		RETURNING id;
	`, storeID, destinations).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed location: %v", err)
	}
	log.Printf("Created location %s", id)
	return id
}

func seedProducts(db *sql.DB, locationID uuid.UUID) {
	products := []struct {
		Name         string
		SKU          string
		HasPrice     bool
		RegularPrice int64
		OnSale       bool
		SalePrice    int64
		Cost         int64
		TrackStock   bool
		Stock        int
	}{
		{"Arabica Coffee Beans 500g", "COF-500", true, 1800, false, 0, 900, true, 40},
		{"Ceramic Pour-Over Dripper", "DRP-001", true, 2500, true, 2000, 1100, true, 12},
		{"Stainless Kettle 1L", "KTL-010", true, 4200, false, 0, 2600, true, 6},
		{"Reusable Filter Pack", "FLT-020", true, 800, false, 0, 300, true, 0},
		{"Seasonal Gift Box", "GFT-099", false, 0, false, 0, 0, false, 0},
		{"House Blend 250g", "COF-250", true, 1000, true, 850, 450, false, 0},
	}

	log.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (location_id, name, sku, has_price, regular_price,
			                      on_sale, sale_price, cost, track_stock, stock)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE location_id = $1 AND sku = $3);
		`, locationID, p.Name, p.SKU, p.HasPrice, p.RegularPrice, p.OnSale, p.SalePrice, p.Cost, p.TrackStock, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.SKU, err)
		}
	}
}

func seedCoupons(db *sql.DB, locationID uuid.UUID) {
	type coupon struct {
		Name              string
		Code              string
		DiscountKind      string
		DiscountBPS       int
		DiscountAmount    int64
		OfferFreeDelivery bool
		ByCode            bool
		ByMinimumTotal    bool
		MinimumTotal      int64
		NewCustomersOnly  bool
	}
	coupons := []coupon{
		{Name: "10% storewide", DiscountKind: "percent", DiscountBPS: 1000},
		{Name: "SAVE20 at checkout", Code: "SAVE20", DiscountKind: "fixed", DiscountAmount: 2000, ByCode: true},
		{Name: "Free delivery over 50", DiscountKind: "fixed", OfferFreeDelivery: true, ByMinimumTotal: true, MinimumTotal: 5000},
		{Name: "Welcome discount", Code: "WELCOME", DiscountKind: "percent", DiscountBPS: 1500, ByCode: true, NewCustomersOnly: true},
	}

	log.Println("Seeding Coupons...")
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons (location_id, name, code, discount_kind, discount_bps,
			                     discount_amount, offer_free_delivery, by_code,
			                     by_minimum_total, minimum_total, new_customers_only)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
			WHERE NOT EXISTS (SELECT 1 FROM coupons WHERE location_id = $1 AND name = $2);
		`, locationID, c.Name, c.Code, c.DiscountKind, c.DiscountBPS, c.DiscountAmount,
			c.OfferFreeDelivery, c.ByCode, c.ByMinimumTotal, c.MinimumTotal, c.NewCustomersOnly)
		if err != nil {
			log.Printf("Failed to seed coupon %s: %v", c.Name, err)
		}
	}
}

// invalidateCache drops any cached catalog rows for the seeded location so
// running services pick up the new data immediately.
func invalidateCache(locationID uuid.UUID) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("Skipping cache invalidation, bad REDIS_URL: %v", err)
		return
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	cache := catalog.NewCache(client, 0)
	if err := cache.Invalidate(ctx, catalog.LocationKey(locationID), catalog.CouponsKey(locationID)); err != nil {
		log.Printf("Failed to invalidate catalog cache: %v", err)
	}
}
