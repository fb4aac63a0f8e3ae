package payment

import (
	"fmt"
	"strings"

	"github.com/ai-chef/recipe-bot/pkg/config"
)

// Package is a purchasable token bundle.
type Package struct {
	Key        string
	Name       string
	Tokens     int64
	PriceMinor int64
}

// Catalog holds the purchasable packages in display order.
type Catalog struct {
	packages []Package
	byKey    map[string]Package
}

// NewCatalog builds a catalog from configuration.
func NewCatalog(cfgs []config.PackageConfig) *Catalog {
	c := &Catalog{
		packages: make([]Package, 0, len(cfgs)),
		byKey:    make(map[string]Package, len(cfgs)),
	}

	for _, pc := range cfgs {
		pkg := Package{
			Key:        pc.Key,
			Name:       pc.Name,
			Tokens:     pc.Tokens,
			PriceMinor: pc.PriceMinor,
		}
		c.packages = append(c.packages, pkg)
		c.byKey[pkg.Key] = pkg
	}

	return c
}

// Get returns the package for key.
func (c *Catalog) Get(key string) (Package, bool) {
	pkg, ok := c.byKey[key]
	return pkg, ok
}

// All returns packages in display order.
func (c *Catalog) All() []Package {
	return c.packages
}

// FormatList renders the catalog for the /buy message.
func (c *Catalog) FormatList() string {
	var b strings.Builder
	b.WriteString("💎 *Выберите пакет рецептов:*\n")

	for _, pkg := range c.packages {
		rubles := pkg.PriceMinor / 100
		perToken := pkg.PriceMinor / pkg.Tokens / 100
		b.WriteString(fmt.Sprintf(
			"\n%s\n   📖 %d рецептов\n   💰 %d руб. (%d руб/рецепт)\n",
			pkg.Name, pkg.Tokens, rubles, perToken,
		))
	}

	return b.String()
}
