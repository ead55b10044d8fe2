package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"scavenger-hunt/utils"

	"gopkg.in/yaml.v3"
)

// CatalogSeed is the YAML layout of an initial catalog.
type CatalogSeed struct {
	Prizes []SeedPrize `yaml:"prizes"`
	Badges []SeedBadge `yaml:"badges"`
	Codes  []SeedCode  `yaml:"codes"`
}

type SeedPrize struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Cost           int64  `yaml:"cost"`
	Description    string `yaml:"description"`
	Icon           string `yaml:"icon"`
	TotalAvailable int    `yaml:"total_available"`
}

type SeedBadge struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	BonusPoints int64  `yaml:"bonus_points"`
}

type SeedCode struct {
	ID          string `yaml:"id"`
	Value       int64  `yaml:"value"`
	Description string `yaml:"description"`
	Badge       string `yaml:"badge"` // badge id (slug)
	Hint        string `yaml:"hint"`
	Order       int    `yaml:"order"`
	Active      *bool  `yaml:"active"`
}

type SeedReport struct {
	Created int
	Skipped int
}

// DefaultCatalogSeed is the launch prize list.
func DefaultCatalogSeed() *CatalogSeed {
	return &CatalogSeed{Prizes: []SeedPrize{
		{ID: "sticker", Name: "YWG Sticker", Cost: 500, Description: "Cool sticker", TotalAvailable: 100},
		{ID: "coffee", Name: "Beezy's Coffee", Cost: 1000, Description: "$5 gift card", TotalAvailable: 50},
		{ID: "grand", Name: "Grand Prize T-Shirt", Cost: 2500, Description: "Limited edition", TotalAvailable: 25},
	}}
}

func LoadCatalogSeed(path string) (*CatalogSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed CatalogSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed creates every seeded record that does not exist yet, badges
// before codes so references resolve. Existing ids are left untouched.
func (s *CatalogService) ApplySeed(ctx context.Context, seed *CatalogSeed) (*SeedReport, error) {
	report := &SeedReport{}
	tally := func(what, id string, err error) error {
		switch {
		case err == nil:
			report.Created++
		case errors.Is(err, ErrDuplicateID):
			report.Skipped++
		default:
			return fmt.Errorf("seed %s %q: %w", what, id, err)
		}
		return nil
	}

	for _, p := range seed.Prizes {
		_, err := s.CreatePrize(ctx, PrizeInput{
			ID: p.ID, Name: p.Name, Cost: p.Cost, Description: p.Description,
			Icon: p.Icon, TotalAvailable: p.TotalAvailable,
		})
		if err := tally("prize", p.Name, err); err != nil {
			return report, err
		}
	}
	for _, b := range seed.Badges {
		_, err := s.CreateBadge(ctx, BadgeInput{Name: b.Name, Description: b.Description, BonusPoints: b.BonusPoints})
		if err := tally("badge", b.Name, err); err != nil {
			return report, err
		}
	}
	for _, c := range seed.Codes {
		in := CodeInput{
			ID: c.ID, Value: c.Value, Description: c.Description,
			Hint: c.Hint, Order: c.Order, Active: c.Active,
		}
		if c.Badge != "" {
			badge := c.Badge
			in.BadgeID = &badge
		}
		_, err := s.CreateCode(ctx, in)
		if err := tally("code", c.ID, err); err != nil {
			return report, err
		}
	}

	utils.Sugar.Infof("🌱 catalog seed applied: %d created, %d already present", report.Created, report.Skipped)
	return report, nil
}
