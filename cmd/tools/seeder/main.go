package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/catalog"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

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

	seedCatalog(db)
	seedCombo(db)
	seedSettings(db)
	seedVouchers(db)

	log.Println("Seeding completed successfully!")
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tiers(pairs ...any) []pricing.PriceTier {
	out := make([]pricing.PriceTier, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, pricing.PriceTier{MinQuantity: pairs[i].(int), UnitPrice: d(pairs[i+1].(string))})
	}
	return out
}

func seedCatalog(db *sql.DB) {
	capOverride := "38mm"
	products := []catalog.Product{
		{
			SKU: "BTL-500-28", Name: "PET Bottle 500 ml (28 mm neck)", BasePrice: d("2.10"), PackageSize: 100,
			Category: "bottle", GroupKey: "28mm",
			Tiers:    tiers(1000, "1.95", 5000, "1.80"),
			AltTiers: tiers(1, "0.12", 1000, "0.11"),
		},
		{
			SKU: "BTL-1000-38", Name: "PET Bottle 1 L (38 mm neck)", BasePrice: d("3.40"), PackageSize: 50,
			Category: "bottle", GroupKey: "38mm",
			Tiers: tiers(500, "3.20", 2500, "2.95"),
			Options: []catalog.Option{
				{Key: "amber", Label: "Amber", BasePrice: decPtr("3.70")},
			},
		},
		{
			SKU: "CAP-28-FLIP", Name: "Flip-top cap 28 mm", BasePrice: d("0.65"), PackageSize: 500,
			Category: "cap", GroupKey: "28mm",
			Tiers: tiers(5000, "0.58"),
			Options: []catalog.Option{
				{Key: "white", Label: "White"},
				{Key: "black", Label: "Black", BasePrice: decPtr("0.70")},
			},
		},
		{
			SKU: "CAP-38-SCREW", Name: "Screw cap 38 mm", BasePrice: d("0.80"), PackageSize: 250,
			Category: "cap", GroupKey: "38mm",
		},
		{
			SKU: "CAP-UNI-SPRAY", Name: "Spray head (28/38 mm adapter)", BasePrice: d("1.90"), PackageSize: 100,
			Category: "cap", GroupKey: "28mm",
			Options: []catalog.Option{
				{Key: "38", Label: "38 mm adapter", GroupKey: &capOverride},
			},
		},
		{
			SKU: "LBL-ROLL-1K", Name: "Blank label roll (1,000)", BasePrice: d("18.00"), PackageSize: 0,
			Category: "label",
		},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		p.Active = true
		if err := p.Validate(); err != nil {
			log.Printf("Skipping invalid product %s: %v", p.SKU, err)
			continue
		}
		tiersJSON, _ := json.Marshal(nonNil(p.Tiers))
		altJSON, _ := json.Marshal(nonNil(p.AltTiers))
		options := p.Options
		if options == nil {
			options = []catalog.Option{}
		}
		optionsJSON, _ := json.Marshal(options)
		_, err := db.Exec(`
			INSERT INTO products (sku, name, base_price, package_size, category, group_key, tiers, alt_tiers, options, active)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				base_price = EXCLUDED.base_price,
				package_size = EXCLUDED.package_size,
				category = EXCLUDED.category,
				group_key = EXCLUDED.group_key,
				tiers = EXCLUDED.tiers,
				alt_tiers = EXCLUDED.alt_tiers,
				options = EXCLUDED.options,
				active = EXCLUDED.active,
				updated_at = now();
		`, p.SKU, p.Name, p.BasePrice.String(), p.PackageSize, p.Category, p.GroupKey,
			string(tiersJSON), string(altJSON), string(optionsJSON), p.Active)
		if err != nil {
			log.Printf("Failed to upsert product %s: %v", p.SKU, err)
		}
	}
}

func seedCombo(db *sql.DB) {
	cfg := pricing.ComboConfig{
		Active:                 true,
		DiscountType:           pricing.DiscountPercentage,
		DiscountValue:          d("5"),
		PrimaryCategory:        "bottle",
		SecondaryCategory:      "cap",
		RequireSameGroupKey:    true,
		MinimumMatchedQuantity: 1000,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Seed combo config is invalid: %v", err)
	}

	var existing int
	if err := db.QueryRow(`SELECT count(*) FROM combo_configs`).Scan(&existing); err != nil {
		log.Printf("Failed to count combo configs: %v", err)
		return
	}
	if existing > 0 {
		fmt.Println("Combo config already present, skipping")
		return
	}

	fmt.Println("Seeding Combo Config...")
	_, err := db.Exec(`
		INSERT INTO combo_configs (active, discount_type, discount_value, primary_category, secondary_category,
			require_same_group_key, minimum_matched_quantity, created_by)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, 'seeder');
	`, cfg.Active, string(cfg.DiscountType), cfg.DiscountValue.String(), cfg.PrimaryCategory, cfg.SecondaryCategory,
		cfg.RequireSameGroupKey, cfg.MinimumMatchedQuantity)
	if err != nil {
		log.Printf("Failed to seed combo config: %v", err)
	}
}

func seedSettings(db *sql.DB) {
	fmt.Println("Seeding Settings...")
	_, err := db.Exec(`
		INSERT INTO store_settings (key, value, updated_by)
		VALUES ('tax_rate_percent', '16', 'seeder')
		ON CONFLICT (key) DO NOTHING;
	`)
	if err != nil {
		log.Printf("Failed to seed tax rate: %v", err)
	}
	_, err = db.Exec(`
		INSERT INTO exchange_rates (base_code, quote_code, rate, source)
		SELECT 'USD', 'MXN', 17.25, 'seeder'
		WHERE NOT EXISTS (SELECT 1 FROM exchange_rates WHERE base_code = 'USD' AND quote_code = 'MXN');
	`)
	if err != nil {
		log.Printf("Failed to seed exchange rate: %v", err)
	}
}

func seedVouchers(db *sql.DB) {
	vouchers := []struct {
		Code        string
		Kind        string
		Value       string
		MaxDiscount *string
		MinSpend    string
		UsageLimit  *int
	}{
		{"WELCOME10", "percent", "10", strPtr("500"), "1000", nil},
		{"FLAT250", "fixed", "250", nil, "2500", intPtr(100)},
		{"BULK5", "percent", "5", nil, "20000", nil},
	}

	fmt.Println("Seeding Vouchers...")
	for _, v := range vouchers {
		_, err := db.Exec(`
			INSERT INTO vouchers (code, kind, value, max_discount, min_spend, usage_limit, valid_from, valid_to, active)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, now(), now() + interval '90 days', TRUE)
			ON CONFLICT (code) DO NOTHING;
		`, v.Code, v.Kind, v.Value, v.MaxDiscount, v.MinSpend, v.UsageLimit)
		if err != nil {
			log.Printf("Failed to seed voucher %s: %v", v.Code, err)
		}
	}
}

func nonNil(t []pricing.PriceTier) []pricing.PriceTier {
	if t == nil {
		return []pricing.PriceTier{}
	}
	return t
}

func decPtr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
