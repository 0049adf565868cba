// Package records defines the report entities shared by the local and
// remote stores, their natural keys and the rule deciding when a newer
// crawl may overwrite an older one.
package records

import (
	"fmt"
	"time"

	"mtreport-backend/internal/rowparse"
)

type EntityType string

const (
	Equity  EntityType = "equity"
	Summary EntityType = "summary"
	Dish    EntityType = "dish"
)

var EntityTypes = []EntityType{Equity, Summary, Dish}

func ParseEntityType(s string) (EntityType, error) {
	for _, t := range EntityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q (expected equity, summary or dish)", s)
}

// Store is a restaurant identified by its merchant org code.
type Store struct {
	OrgCode   string
	Name      string
	UpdatedAt time.Time
}

type EquityKey struct {
	OrgCode     string
	Date        string
	PackageName string
}

// EquityPackageSale is the sales of one equity package at one store on one day.
type EquityPackageSale struct {
	OrgCode        string
	StoreName      string
	Date           string
	PackageName    string
	UnitPrice      float64
	QuantitySold   int64
	TotalSales     float64
	RefundQuantity int64
	RefundAmount   float64
	UpdatedAt      time.Time
}

func (r EquityPackageSale) Key() EquityKey {
	return EquityKey{OrgCode: r.OrgCode, Date: r.Date, PackageName: r.PackageName}
}

// Supersedes reports whether r carries strictly more sales than existing.
func (r EquityPackageSale) Supersedes(existing EquityPackageSale) bool {
	return r.QuantitySold > existing.QuantitySold || r.TotalSales > existing.TotalSales
}

type SummaryKey struct {
	StoreName    string
	BusinessDate string
}

// BusinessSummary is one store's operating statistics for a whole day.
type BusinessSummary struct {
	City                    string
	StoreName               string
	BusinessDate            string
	StoreCreatedAt          string
	OperatingDays           int64
	Revenue                 float64
	DiscountAmount          float64
	BusinessIncome          float64
	OrderCount              int64
	DinerCount              int64
	TableCount              int64
	PerCapitaBeforeDiscount float64
	PerCapitaAfterDiscount  float64
	AvgOrderBeforeDiscount  float64
	AvgOrderAfterDiscount   float64
	TableOpeningRate        string
	TableTurnoverRate       float64
	OccupancyRate           string
	AvgDiningTime           int64
	Composition             *rowparse.Composition
	UpdatedAt               time.Time
}

func (r BusinessSummary) Key() SummaryKey {
	return SummaryKey{StoreName: r.StoreName, BusinessDate: r.BusinessDate}
}

func (r BusinessSummary) Supersedes(existing BusinessSummary) bool {
	return r.Revenue > existing.Revenue || r.OrderCount > existing.OrderCount
}

// CompositionJSON returns the stored form of the composition payload.
func (r BusinessSummary) CompositionJSON() string {
	return r.Composition.String()
}

type DishKey struct {
	StoreName    string
	BusinessDate string
	DishName     string
}

// DishSale is one dish's sales at one store on one day.
type DishSale struct {
	StoreName           string
	OrgCode             string
	BusinessDate        string
	DishName            string
	SalesQuantity       int64
	SalesQuantityPct    float64
	PriceBeforeDiscount float64
	PriceAfterDiscount  float64
	SalesAmount         float64
	SalesAmountPct      float64
	DiscountAmount      float64
	DishDiscountPct     float64
	DishIncome          float64
	DishIncomePct       float64
	OrderQuantity       int64
	OrderAmount         float64
	ReturnQuantity      int64
	ReturnAmount        float64
	ReturnQuantityPct   float64
	ReturnAmountPct     float64
	ReturnRate          float64
	ReturnOrderCount    int64
	GiftQuantity        int64
	GiftAmount          float64
	GiftQuantityPct     float64
	GiftAmountPct       float64
	DishOrderCount      int64
	RelatedOrderAmount  float64
	SalesPerThousand    float64
	OrderRate           float64
	CustomerClickRate   float64
	UpdatedAt           time.Time
}

func (r DishSale) Key() DishKey {
	return DishKey{StoreName: r.StoreName, BusinessDate: r.BusinessDate, DishName: r.DishName}
}

func (r DishSale) Supersedes(existing DishSale) bool {
	return r.SalesQuantity > existing.SalesQuantity || r.SalesAmount > existing.SalesAmount
}

// CrawlLogEntry is the outcome of crawling one report for one date.
type CrawlLogEntry struct {
	// Scope is the store code the crawl was limited to, GroupScope for group wide reports.
	Scope       string
	Report      EntityType
	Date        string
	Success     bool
	RecordCount int
	Error       string
	CrawledAt   time.Time
}

// GroupScope is the crawl log scope of reports covering every store at once.
const GroupScope = "GROUP"
