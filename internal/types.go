package internal

type EntrySource string

const (
	SourceCatalog  EntrySource = "catalog"
	SourceDocument EntrySource = "document"
)

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

type CatalogFormat string

const (
	FormatRich   CatalogFormat = "rich"
	FormatLegacy CatalogFormat = "legacy"
)

type CatalogEntry struct {
	Barcode           string      `json:"barcode"`
	NormalizedBarcode string      `json:"normalizedBarcode"`
	Source            EntrySource `json:"source"`
	RowNumber         int         `json:"rowNumber,omitempty"`

	Price      *float64  `json:"price,omitempty"`
	PriceEuro  *float64  `json:"priceEuro,omitempty"`
	PricePound *float64  `json:"pricePound,omitempty"`
	Currency   *Currency `json:"currency,omitempty"`

	Description      *string `json:"description,omitempty"`
	Supplier         *string `json:"supplier,omitempty"`
	ProductReference *string `json:"productReference,omitempty"`
	Color            *string `json:"color,omitempty"`
	Size             *string `json:"size,omitempty"`
	ColorCode        *string `json:"colorCode,omitempty"`
	Season           *string `json:"season,omitempty"`
	CreationSeason   *string `json:"creationSeason,omitempty"`
	BrandCode        *string `json:"brandCode,omitempty"`
	CommercialDelay  *string `json:"commercialDelay,omitempty"`
}

type DocumentBarcode struct {
	Barcode           string      `json:"barcode"`
	NormalizedBarcode string      `json:"normalizedBarcode"`
	Source            EntrySource `json:"source"`
}

type ProductReference struct {
	Code          string `json:"code"`
	FullReference string `json:"fullReference"`
}

type ResultStatus string

const (
	StatusExactMatch    ResultStatus = "exact_match"
	StatusPDFOnly       ResultStatus = "pdf_only"
	StatusExcelOnly     ResultStatus = "excel_only"
	StatusPriceMismatch ResultStatus = "price_mismatch"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type ComparisonResult struct {
	Barcode           string           `json:"barcode"`
	NormalizedBarcode string           `json:"normalizedBarcode"`
	PDFData           *DocumentBarcode `json:"pdfData,omitempty"`
	ExcelData         *CatalogEntry    `json:"excelData,omitempty"`
	Status            ResultStatus     `json:"status"`
	Severity          Severity         `json:"severity"`
	Discrepancy       string           `json:"discrepancy"`
	PriceDifference   *float64         `json:"priceDifference,omitempty"`
}

type CurrencyStats struct {
	Count        int     `json:"count"`
	AveragePrice float64 `json:"averagePrice"`
}

type CurrencyAnalysis struct {
	EUR                    CurrencyStats `json:"eur"`
	GBP                    CurrencyStats `json:"gbp"`
	AveragePriceDifference float64       `json:"averagePriceDifference"`
}

type ComplianceMetrics struct {
	SupplierName    string        `json:"supplierName"`
	Format          CatalogFormat `json:"format"`
	Total           int           `json:"total"`
	ExactMatches    int           `json:"exactMatches"`
	PriceMismatches int           `json:"priceMismatches"`
	PDFOnly         int           `json:"pdfOnly"`
	ExcelOnly       int           `json:"excelOnly"`
	CriticalErrors  int           `json:"criticalErrors"`
	ComplianceRate  float64       `json:"complianceRate"`
	ErrorRate       float64       `json:"errorRate"`

	ColorDistribution    map[string]int    `json:"colorDistribution,omitempty"`
	SizeDistribution     map[string]int    `json:"sizeDistribution,omitempty"`
	SupplierDistribution map[string]int    `json:"supplierDistribution,omitempty"`
	CurrencyAnalysis     *CurrencyAnalysis `json:"currencyAnalysis,omitempty"`
}

type SupplierInfo struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	ProductCount       int      `json:"productCount"`
	DetectedReferences []string `json:"detectedReferences"`
	Confidence         float64  `json:"confidence"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	RunID        string
	EmailID      *int
	DocumentName string
	CatalogName  string
	SupplierName string
	Format       CatalogFormat
	PDFCount     int
	CatalogCount int
	Metrics      ComplianceMetrics
	Timings      map[string]float64
	CreatedAt    string
}
