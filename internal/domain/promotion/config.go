package promotion

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountPrefix = regexp.MustCompile(`^\d+(?:\.\d+)?`)

// Config is the explicit type marker of a promotion. A zero Kind means the
// kind has to be inferred from the slabs.
type Config struct {
	Kind Kind
	// Value is the percentage or fixed per-unit amount recorded alongside the
	// marker.
	Value decimal.NullDecimal
}

// PercentageConfig returns a PERCENTAGE marker carrying v.
func PercentageConfig(v decimal.Decimal) Config {
	return Config{Kind: KindPercentage, Value: decimal.NewNullDecimal(v)}
}

// FixedConfig returns a FIXED marker carrying v.
func FixedConfig(v decimal.Decimal) Config {
	return Config{Kind: KindFixed, Value: decimal.NewNullDecimal(v)}
}

// WeightedConfig returns a WEIGHTED marker.
func WeightedConfig() Config {
	return Config{Kind: KindWeighted}
}

// FixedAmount returns the per-unit amount recorded for a FIXED marker. A
// non-positive amount counts as unrecorded.
func (c Config) FixedAmount() (decimal.Decimal, bool) {
	if c.Kind != KindFixed && c.Kind != "" {
		return decimal.Zero, false
	}
	if !c.Value.Valid || !c.Value.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return c.Value.Decimal, true
}

// String encodes the marker in the legacy tag form, for example
// "TYPE:PERCENTAGE,PERCENTAGE:10".
func (c Config) String() string {
	var parts []string
	if c.Kind != "" {
		parts = append(parts, "TYPE:"+string(c.Kind))
	}
	if c.Value.Valid && c.Kind != KindWeighted {
		key := c.Kind
		if key == "" {
			key = KindFixed
		}
		parts = append(parts, string(key)+":"+c.Value.Decimal.String())
	}
	return strings.Join(parts, ",")
}

// ParseTag decodes a legacy tag. Keys are case-insensitive and may trail
// free text. A value is the leading unsigned decimal of the entry, so
// "FIXED:5 off" records 5. Unknown, malformed and zero entries are ignored.
// A FIXED amount is kept even without a TYPE entry.
func ParseTag(tag string) Config {
	var (
		c      Config
		values = map[Kind]decimal.Decimal{}
	)
	for _, part := range strings.Split(tag, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		key, val = upper(key), strings.TrimSpace(val)
		if i := strings.LastIndexAny(key, " \t"); i >= 0 {
			key = key[i+1:]
		}
		if key == "TYPE" {
			if k, ok := ParseKind(val); ok {
				c.Kind = k
			}
			continue
		}
		k, ok := ParseKind(key)
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(amountPrefix.FindString(val))
		if err != nil || !d.IsPositive() {
			continue
		}
		values[k] = d
	}

	switch c.Kind {
	case KindPercentage, KindFixed:
		if v, ok := values[c.Kind]; ok {
			c.Value = decimal.NewNullDecimal(v)
		}
	case "":
		if v, ok := values[KindFixed]; ok {
			c.Value = decimal.NewNullDecimal(v)
		}
	}
	return c
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
