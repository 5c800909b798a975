package services

import (
	"regexp"
	"strings"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/shopspring/decimal"
)

// Token delimiters for free-text variant descriptors. Whitespace is not one,
// so "Blue" never matches inside "Light Blue Edition".
const variantDelims = `,;:|/()\[\]\n`

func tokenPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[` + variantDelims + `])\s*` + regexp.QuoteMeta(name) + `\s*($|[` + variantDelims + `])`)
}

// optionDelta is what one chosen option adds on top of base. A wholesale
// override replaces the base price instead of stacking.
func optionDelta(o domain.VariantOption, tier domain.Tier, base decimal.Decimal) decimal.Decimal {
	if tier == domain.TierWholesale && o.WholesalePrice.Valid && o.WholesalePrice.Decimal.IsPositive() {
		return o.WholesalePrice.Decimal.Sub(base)
	}
	return o.PriceDelta
}

// ResolveVariantDelta matches every option name against the descriptor as a
// whole token and sums the deltas of the ones found. Legacy path for carts
// that only send free text.
func ResolveVariantDelta(schema []domain.VariantGroup, descriptor string, tier domain.Tier, base decimal.Decimal) decimal.Decimal {
	delta := decimal.Zero
	if strings.TrimSpace(descriptor) == "" {
		return delta
	}
	for _, g := range schema {
		for _, o := range g.Options {
			name := strings.TrimSpace(o.Name)
			if name == "" {
				continue
			}
			if tokenPattern(name).MatchString(descriptor) {
				delta = delta.Add(optionDelta(o, tier, base))
			}
		}
	}
	return delta
}

// ResolveVariantSelection looks chosen options up by id. It returns the summed
// delta and a "Group: Option, Group: Option" rendering for the order line.
func ResolveVariantSelection(schema []domain.VariantGroup, sel []domain.VariantSelection, tier domain.Tier, base decimal.Decimal) (decimal.Decimal, string, error) {
	delta := decimal.Zero
	seen := make(map[string]bool, len(sel))
	parts := make([]string, 0, len(sel))
	for _, s := range sel {
		g, ok := findGroup(schema, s.GroupID)
		if !ok {
			return decimal.Zero, "", domain.Invalid("options", "unknown variant group "+s.GroupID)
		}
		if seen[g.ID] {
			return decimal.Zero, "", domain.Invalid("options", "more than one option for "+g.Name)
		}
		seen[g.ID] = true
		o, ok := findOption(g, s.OptionID)
		if !ok {
			return decimal.Zero, "", domain.Invalid("options", "unknown option "+s.OptionID+" in "+g.Name)
		}
		delta = delta.Add(optionDelta(o, tier, base))
		parts = append(parts, g.Name+": "+o.Name)
	}
	return delta, strings.Join(parts, ", "), nil
}

func findGroup(schema []domain.VariantGroup, id string) (domain.VariantGroup, bool) {
	for _, g := range schema {
		if g.ID == id {
			return g, true
		}
	}
	return domain.VariantGroup{}, false
}

func findOption(g domain.VariantGroup, id string) (domain.VariantOption, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return domain.VariantOption{}, false
}
