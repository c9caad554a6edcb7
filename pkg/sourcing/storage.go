package sourcing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrSupplierNotFound indicates an unknown supplier id.
var ErrSupplierNotFound = errors.New("supplier not found")

// Supplier is one vendor record from the storage collaborator.
type Supplier struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Country        string   `json:"country"`
	Region         string   `json:"region"`
	Categories     []string `json:"categories,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Rating         float64  `json:"rating"`
	LeadTimeDays   int      `json:"lead_time_days"`
}

// Product is one catalog entry offered by a supplier.
type Product struct {
	ID         string  `json:"id"`
	SupplierID string  `json:"supplier_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	UnitPrice  float64 `json:"unit_price"`
}

// ComplianceResult aligns with Suppliers by supplier id.
type ComplianceResult struct {
	SupplierID     string   `json:"supplier_id"`
	Compliant      bool     `json:"compliant"`
	Certifications []string `json:"certifications,omitempty"`
	Issues         []string `json:"issues,omitempty"`
}

// RiskResult aligns with Suppliers by supplier id. Score is in [0,1],
// higher means riskier.
type RiskResult struct {
	SupplierID string   `json:"supplier_id"`
	Score      float64  `json:"score"`
	Factors    []string `json:"factors,omitempty"`
}

// Comparison is a side-by-side scoring of several suppliers.
type Comparison struct {
	SupplierIDs    []string                      `json:"supplier_ids"`
	Criteria       []string                      `json:"criteria"`
	Scores         map[string]map[string]float64 `json:"scores"`
	Recommendation string                        `json:"recommendation,omitempty"`
}

// SearchFilters narrows a supplier search.
type SearchFilters struct {
	Query          string
	Category       string
	Region         string
	Certifications []string
	Limit          int
}

// SupplierStore is the storage collaborator consumed by the domain
// stages. The pipeline treats it purely as a query service.
type SupplierStore interface {
	SearchSuppliers(ctx context.Context, filters SearchFilters) ([]Supplier, error)
	GetSupplier(ctx context.Context, id string) (*Supplier, error)
	SearchProducts(ctx context.Context, query string) ([]Product, error)
	GetCategories(ctx context.Context, filters SearchFilters) ([]string, error)
	TopSuppliers(ctx context.Context, metric string, limit int) ([]Supplier, error)
	CompareSuppliers(ctx context.Context, ids []string) (*Comparison, error)
	HealthCheck(ctx context.Context) error
}

// MemorySupplierStore is an in-memory SupplierStore for tests and the
// runnable examples.
type MemorySupplierStore struct {
	mu        sync.RWMutex
	suppliers []Supplier
	products  []Product
}

var _ SupplierStore = (*MemorySupplierStore)(nil)

// NewMemorySupplierStore creates an empty in-memory store.
func NewMemorySupplierStore() *MemorySupplierStore {
	return &MemorySupplierStore{}
}

// AddSupplier seeds a supplier record.
func (m *MemorySupplierStore) AddSupplier(s Supplier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliers = append(m.suppliers, s)
}

// AddProduct seeds a product record.
func (m *MemorySupplierStore) AddProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
}

// SearchSuppliers implements SupplierStore. Filters are conjunctive;
// empty filter fields match everything.
func (m *MemorySupplierStore) SearchSuppliers(_ context.Context, filters SearchFilters) ([]Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Supplier
	for _, s := range m.suppliers {
		if !matchesFilters(s, filters) {
			continue
		}
		results = append(results, s)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}
	return results, nil
}

func matchesFilters(s Supplier, filters SearchFilters) bool {
	if filters.Query != "" {
		q := strings.ToLower(filters.Query)
		if !strings.Contains(strings.ToLower(s.Name), q) && !containsFold(s.Categories, q) {
			return false
		}
	}
	if filters.Category != "" && !containsFold(s.Categories, filters.Category) {
		return false
	}
	if filters.Region != "" && !strings.EqualFold(s.Region, filters.Region) {
		return false
	}
	for _, cert := range filters.Certifications {
		if !containsFold(s.Certifications, cert) {
			return false
		}
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// GetSupplier implements SupplierStore.
func (m *MemorySupplierStore) GetSupplier(_ context.Context, id string) (*Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.suppliers {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, ErrSupplierNotFound
}

// SearchProducts implements SupplierStore.
func (m *MemorySupplierStore) SearchProducts(_ context.Context, query string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var results []Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.EqualFold(p.Category, query) {
			results = append(results, p)
		}
	}
	return results, nil
}

// GetCategories implements SupplierStore.
func (m *MemorySupplierStore) GetCategories(_ context.Context, filters SearchFilters) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var categories []string
	for _, s := range m.suppliers {
		if !matchesFilters(s, filters) {
			continue
		}
		for _, c := range s.Categories {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// TopSuppliers implements SupplierStore. The only supported metric is
// "rating"; unknown metrics fall back to it.
func (m *MemorySupplierStore) TopSuppliers(_ context.Context, _ string, limit int) ([]Supplier, error) {
	m.mu.RLock()
	ranked := make([]Supplier, len(m.suppliers))
	copy(ranked, m.suppliers)
	m.mu.RUnlock()

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rating > ranked[j].Rating })
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// CompareSuppliers implements SupplierStore. Scores each supplier on
// rating, lead time, and certification coverage, 0-100 per criterion.
func (m *MemorySupplierStore) CompareSuppliers(ctx context.Context, ids []string) (*Comparison, error) {
	cmp := &Comparison{
		SupplierIDs: ids,
		Criteria:    []string{"rating", "lead_time", "certifications"},
		Scores:      make(map[string]map[string]float64, len(ids)),
	}

	bestScore := -1.0
	for _, id := range ids {
		s, err := m.GetSupplier(ctx, id)
		if err != nil {
			return nil, err
		}

		leadScore := 100.0 - float64(s.LeadTimeDays)
		if leadScore < 0 {
			leadScore = 0
		}
		scores := map[string]float64{
			"rating":         s.Rating * 20, // 0-5 scale to 0-100
			"lead_time":      leadScore,
			"certifications": float64(len(s.Certifications)) * 25,
		}
		cmp.Scores[id] = scores

		total := scores["rating"] + scores["lead_time"] + scores["certifications"]
		if total > bestScore {
			bestScore = total
			cmp.Recommendation = s.Name
		}
	}
	return cmp, nil
}

// HealthCheck implements SupplierStore.
func (m *MemorySupplierStore) HealthCheck(context.Context) error { return nil }
