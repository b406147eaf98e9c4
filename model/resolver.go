package model

// Strategy names the physical storage kind a resolver rule targets
// (spec §3 "Resolver").
type Strategy string

const (
	StrategyObjectStore Strategy = "object-store"
	StrategyFilesystem  Strategy = "filesystem"
	StrategyDatabase    Strategy = "database"
	StrategyCatalog     Strategy = "catalog"
)

// ResolverRule is one ordered conditional rule of a Resolver.
type ResolverRule struct {
	ID        string
	When      string // boolean expression source; empty means "always matches"
	DataLevel string // calendar level name, or "any"
	Strategy  Strategy
	Templates map[string]string // strategy-specific template fields
}

// Resolver is an ordered list of rules plus the calendar it expands
// against (spec §3 "Resolver").
type Resolver struct {
	ID         string
	CalendarID string
	Rules      []ResolverRule
	Active     bool
}

const DataLevelAny = "any"
