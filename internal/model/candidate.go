package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ITType is the kind of IT business a candidate proposes. It drives the
// base market score and the "best domains" synergy lookup.
type ITType string

const (
	ITTypeSaaS            ITType = "saas"
	ITTypeAIService       ITType = "ai_service"
	ITTypeMobileApp       ITType = "mobile_app"
	ITTypeMarketplace     ITType = "marketplace"
	ITTypeAgency          ITType = "agency"
	ITTypeTools           ITType = "tools"
	ITTypePlatform        ITType = "platform"
	ITTypeChromeExtension ITType = "chrome_extension"
	ITTypeAPIService      ITType = "api_service"
	ITTypeConsulting      ITType = "consulting"
	ITTypeContent         ITType = "content_business"
	ITTypeNoCode          ITType = "nocode_solution"
)

// ITTypes lists every known ITType.
var ITTypes = []ITType{
	ITTypeSaaS, ITTypeAIService, ITTypeMobileApp, ITTypeMarketplace,
	ITTypeAgency, ITTypeTools, ITTypePlatform, ITTypeChromeExtension,
	ITTypeAPIService, ITTypeConsulting, ITTypeContent, ITTypeNoCode,
}

// Valid reports whether t is a known ITType.
func (t ITType) Valid() bool {
	for _, k := range ITTypes {
		if k == t {
			return true
		}
	}
	return false
}

// BusinessType selects the cost table used by the financial simulator.
type BusinessType string

const (
	BusinessSaaS        BusinessType = "saas"
	BusinessAgency      BusinessType = "agency"
	BusinessMarketplace BusinessType = "marketplace"
	BusinessTool        BusinessType = "tool"
)

// Valid reports whether b is a known BusinessType.
func (b BusinessType) Valid() bool {
	switch b {
	case BusinessSaaS, BusinessAgency, BusinessMarketplace, BusinessTool:
		return true
	}
	return false
}

// Scale is the planned operating scale of a business.
type Scale string

const (
	ScaleSmall  Scale = "small"
	ScaleMedium Scale = "medium"
	ScaleLarge  Scale = "large"
)

// Valid reports whether s is a known Scale.
func (s Scale) Valid() bool {
	switch s {
	case ScaleSmall, ScaleMedium, ScaleLarge:
		return true
	}
	return false
}

// RevenueModel selects how monthly revenue is simulated.
type RevenueModel string

const (
	RevenueSubscription RevenueModel = "subscription"
	RevenueOneTime      RevenueModel = "one_time"
	RevenueCommission   RevenueModel = "commission"
)

// Valid reports whether m is a known RevenueModel.
func (m RevenueModel) Valid() bool {
	switch m {
	case RevenueSubscription, RevenueOneTime, RevenueCommission:
		return true
	}
	return false
}

// Pricing holds the price assumptions used by the revenue simulation.
// Amounts are in KRW.
type Pricing struct {
	Monthly        int64   `json:"monthly,omitempty" yaml:"monthly"`
	OneTime        int64   `json:"one_time,omitempty" yaml:"one_time"`
	AvgTransaction int64   `json:"avg_transaction,omitempty" yaml:"avg_transaction"`
	CommissionRate float64 `json:"commission_rate,omitempty" yaml:"commission_rate"`
	TxPerMonth     int     `json:"transactions_per_month,omitempty" yaml:"transactions_per_month"`
}

// Candidate is a proposed business idea under evaluation. It has no
// identity beyond Name until an evaluation is persisted.
type Candidate struct {
	Name             string       `json:"name" yaml:"name"`
	Category         string       `json:"category" yaml:"category"`
	Domain           string       `json:"domain" yaml:"domain"`
	TargetAudience   string       `json:"target_audience" yaml:"target_audience"`
	Description      string       `json:"description,omitempty" yaml:"description"`
	Keyword          string       `json:"keyword,omitempty" yaml:"keyword"`
	ITType           ITType       `json:"it_type" yaml:"it_type"`
	BusinessType     BusinessType `json:"business_type" yaml:"business_type"`
	Scale            Scale        `json:"scale" yaml:"scale"`
	RevenueModel     RevenueModel `json:"revenue_model" yaml:"revenue_model"`
	RevenueModels    []string     `json:"revenue_models,omitempty" yaml:"revenue_models"`
	Pricing          Pricing      `json:"pricing" yaml:"pricing"`
	TargetMarketSize int          `json:"target_market_size" yaml:"target_market_size"`
	Budget           int64        `json:"budget,omitempty" yaml:"budget"`
	Variant          string       `json:"variant,omitempty" yaml:"variant"`
}

// Validate checks that the candidate is usable by the evaluator. An unknown
// ITType is allowed (the scorer falls back to a neutral base score) but an
// unknown BusinessType, Scale or RevenueModel is not.
func (c Candidate) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "name is required")
	}
	if c.TargetMarketSize < 0 {
		errs = append(errs, "target_market_size must not be negative")
	}
	if c.BusinessType != "" && !c.BusinessType.Valid() {
		errs = append(errs, "unknown business_type "+string(c.BusinessType))
	}
	if c.Scale != "" && !c.Scale.Valid() {
		errs = append(errs, "unknown scale "+string(c.Scale))
	}
	if c.RevenueModel != "" && !c.RevenueModel.Valid() {
		errs = append(errs, "unknown revenue_model "+string(c.RevenueModel))
	}
	if c.Pricing.CommissionRate < 0 || c.Pricing.CommissionRate > 1 {
		errs = append(errs, "commission_rate must be within [0,1]")
	}
	if len(errs) > 0 {
		return eris.Errorf("model: invalid candidate %q: %s", c.Name, strings.Join(errs, "; "))
	}
	return nil
}

// WithDefaults fills the simulator inputs a generator may leave empty.
func (c Candidate) WithDefaults() Candidate {
	if c.BusinessType == "" {
		c.BusinessType = BusinessSaaS
	}
	if c.Scale == "" {
		c.Scale = ScaleSmall
	}
	if c.RevenueModel == "" {
		if c.BusinessType == BusinessSaaS {
			c.RevenueModel = RevenueSubscription
		} else {
			c.RevenueModel = RevenueOneTime
		}
	}
	if c.Pricing.TxPerMonth == 0 {
		c.Pricing.TxPerMonth = 5
	}
	if c.Category == "" {
		c.Category = "IT/Tech"
	}
	return c
}
