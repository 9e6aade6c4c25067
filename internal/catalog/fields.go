package catalog

import (
	"regexp"
	"strings"

	"labelrecon/internal/barcode"
	"labelrecon/internal/util"
)

type Field string

const (
	FieldBarcode          Field = "barcode"
	FieldPriceEuro        Field = "priceEuro"
	FieldPricePound       Field = "pricePound"
	FieldPrice            Field = "price"
	FieldDescription      Field = "description"
	FieldSupplier         Field = "supplier"
	FieldProductReference Field = "productReference"
	FieldColor            Field = "color"
	FieldSize             Field = "size"
	FieldColorCode        Field = "colorCode"
	FieldSeason           Field = "season"
	FieldCreationSeason   Field = "creationSeason"
	FieldBrandCode        Field = "brandCode"
	FieldCommercialDelay  Field = "commercialDelay"
)

// FieldDetector describes how one semantic column is recognised.
// Names are stored folded (see util.FoldHeader).
type FieldDetector struct {
	Field    Field
	Names    []string
	Validate func(value string) bool
}

// Confidence is the share of values accepted by Validate. It is in [0, 1].
func (d FieldDetector) Confidence(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	valid := 0
	for _, v := range values {
		if d.Validate(v) {
			valid++
		}
	}
	return float64(valid) / float64(len(values))
}

// NameScore is 0.8 for an exact header name, 0.5 when a known name is contained in the header.
func (d FieldDetector) NameScore(header string) float64 {
	if header == "" {
		return 0
	}
	for _, n := range d.Names {
		if header == n {
			return 0.8
		}
	}
	for _, n := range d.Names {
		if strings.Contains(header, n) {
			return 0.5
		}
	}
	return 0
}

var reSize = regexp.MustCompile(`(?i)^(XS|S|M|L|XL|XXL|XXXL|XXXXL|\d+)$`)
var reReference = regexp.MustCompile(`[A-Z0-9]`)

func lengthBetween(minExclusive, maxExclusive int) func(string) bool {
	return func(v string) bool {
		n := len([]rune(strings.TrimSpace(v)))
		return n > minExclusive && n < maxExclusive
	}
}

func lengthWithin(min, max int) func(string) bool {
	return func(v string) bool {
		n := len([]rune(strings.TrimSpace(v)))
		return n >= min && n <= max
	}
}

func validBarcodeCell(v string) bool {
	n := len(barcode.Normalize(util.ExpandScientific(strings.TrimSpace(v))))
	return n >= 8 && n <= 14
}

func validPriceCell(v string) bool {
	return util.ParsePrice(v) != nil
}

func validReferenceCell(v string) bool {
	v = strings.TrimSpace(v)
	n := len([]rune(v))
	return n >= 3 && n <= 50 && reReference.MatchString(strings.ToUpper(v))
}

func validSizeCell(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && (reSize.MatchString(v) || len([]rune(v)) <= 10)
}

func folded(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, util.FoldHeader(n))
	}
	return out
}

// Detectors are evaluated in this order; it is also the order of diagnostics.
var Detectors = []FieldDetector{
	{
		Field: FieldBarcode,
		Names: folded("gencod", "code-barres", "code barre", "codebarre", "code_barre", "ean", "ean13", "ean-13",
			"upc", "gtin", "gtin13", "barcode", "bar_code", "bar-code", "product_code", "item_code", "code",
			"code article", "article_code", "article-code", "référence", "reference", "ref", "sku", "id", "identifiant"),
		Validate: validBarcodeCell,
	},
	{
		Field:    FieldPriceEuro,
		Names:    folded("x300", "prix eur", "price eur", "euro", "eur"),
		Validate: validPriceCell,
	},
	{
		Field:    FieldPricePound,
		Names:    folded("x350", "prix gbp", "price gbp", "pound", "gbp"),
		Validate: validPriceCell,
	},
	{
		Field: FieldPrice,
		Names: folded("prix", "price", "retail price", "prix de vente", "prix_vente", "montant", "coût", "cout", "cost",
			"tarif", "tariff", "prix unitaire", "unit price", "prix_unitaire", "unit_price", "valeur", "value", "amount", "total", "pvp"),
		Validate: validPriceCell,
	},
	{
		Field: FieldDescription,
		Names: folded("libellé_article", "libelle_article", "description", "libellé", "libelle", "nom", "name", "produit",
			"product", "designation", "titre", "title", "label", "style", "modèle", "modele", "article", "item",
			"product_name", "product-name", "item_name"),
		Validate: lengthBetween(2, 200),
	},
	{
		Field: FieldSupplier,
		Names: folded("fournisseur", "supplier", "vendor", "marque", "brand", "fabricant", "manufacturer", "distributeur",
			"distributor", "société", "societe", "company", "entreprise", "partenaire", "partner"),
		Validate: lengthBetween(1, 100),
	},
	{
		Field: FieldProductReference,
		Names: folded("code_article", "code article", "article code", "product code", "reference", "ref produit",
			"product reference", "item reference", "article reference", "ref article", "article_code", "product_code", "ref_produit"),
		Validate: validReferenceCell,
	},
	{
		Field:    FieldColor,
		Names:    folded("lib._coloris", "coloris", "couleur", "color", "lib_coloris"),
		Validate: lengthBetween(1, 50),
	},
	{
		Field:    FieldSize,
		Names:    folded("taille", "size"),
		Validate: validSizeCell,
	},
	{
		Field:    FieldColorCode,
		Names:    folded("code_coloris", "code coloris", "color code"),
		Validate: lengthWithin(1, 20),
	},
	{
		Field:    FieldSeason,
		Names:    folded("dernière_sais_comm", "derniere_sais_comm", "saison", "season"),
		Validate: lengthWithin(2, 20),
	},
	{
		Field:    FieldCreationSeason,
		Names:    folded("sais_création_produit", "sais_creation_produit", "creation season"),
		Validate: lengthWithin(2, 20),
	},
	{
		Field:    FieldBrandCode,
		Names:    folded("code_marque", "code marque", "brand code"),
		Validate: lengthWithin(1, 20),
	},
	{
		Field:    FieldCommercialDelay,
		Names:    folded("délai_commercial", "delai_commercial", "commercial delay"),
		Validate: lengthWithin(1, 50),
	},
}

func detectorFor(field Field) (FieldDetector, bool) {
	for _, d := range Detectors {
		if d.Field == field {
			return d, true
		}
	}
	return FieldDetector{}, false
}
