package vista

import (
	"strings"
	"time"

	"github.com/yourorg/listing-gateway/internal/canon"
)

// IntSelection is an exact-or-plus numeric predicate ("3" vs "3+").
type IntSelection struct {
	Value  int  `json:"value"`
	OrMore bool `json:"orMore"`
}

// Filters is the open predicate set accepted by ListProperties. At request
// build time it splits into server-expressible predicates (translated into
// the upstream query) and client-only predicates (applied by ApplyPost).
type Filters struct {
	City     string   `json:"city,omitempty"`
	Types    []string `json:"types,omitempty"`
	Purpose  string   `json:"purpose,omitempty"`
	MinPrice float64  `json:"minPrice,omitempty"`
	MaxPrice float64  `json:"maxPrice,omitempty"`

	Bedrooms *IntSelection `json:"bedrooms,omitempty"`
	Suites   *IntSelection `json:"suites,omitempty"`
	Parking  *IntSelection `json:"parking,omitempty"`

	Characteristics  []string `json:"characteristics,omitempty"`
	BuildingFeatures []string `json:"buildingFeatures,omitempty"`
	LocationFeatures []string `json:"locationFeatures,omitempty"`

	// SeaDistance is a bucket name (frente-mar, quadra-mar, segunda-quadra,
	// terceira-quadra, ate-500m, ate-1km).
	SeaDistance string `json:"seaDistance,omitempty"`

	BuildingName string    `json:"buildingName,omitempty"`
	Code         string    `json:"code,omitempty"`
	UpdatedSince time.Time `json:"updatedSince,omitempty"`

	Exclusive      bool `json:"exclusive,omitempty"`
	Launch         bool `json:"launch,omitempty"`
	SuperHighlight bool `json:"superHighlight,omitempty"`

	SortKey  string `json:"sortKey,omitempty"`
	SortDesc bool   `json:"sortDesc,omitempty"`
}

// seaDistanceCeilings maps bucket names onto their maximum meters.
var seaDistanceCeilings = map[string]float64{
	"frente-mar":      50,
	"quadra-mar":      100,
	"segunda-quadra":  200,
	"terceira-quadra": 300,
	"ate-500m":        500,
	"ate-1km":         1000,
}

// HasClientOnly reports whether any predicate must be applied in-process.
// When true the upstream's reported total is invalid and must be reconciled
// by a full scan.
func (f Filters) HasClientOnly() bool {
	return len(f.Characteristics) > 0 ||
		len(f.BuildingFeatures) > 0 ||
		len(f.LocationFeatures) > 0 ||
		f.SeaDistance != "" ||
		f.BuildingName != "" ||
		f.Exclusive || f.Launch || f.SuperHighlight
}

// NeedsWideScan reports whether matches may be scattered across many pages
// regardless of the requested limit, forcing a minimum fetch window.
func (f Filters) NeedsWideScan() bool {
	return f.BuildingName != ""
}

// serverFilter translates the server-expressible predicates into the
// upstream filter shape, pruning field names through the registry.
func (f Filters) serverFilter(reg *Registry) map[string]any {
	out := map[string]any{}
	put := func(candidates []string, value any) {
		if name, ok := reg.Resolve(candidates, false); ok {
			out[name] = value
		}
	}
	if f.City != "" {
		put([]string{"Cidade"}, f.City)
	}
	if len(f.Types) > 0 {
		put([]string{"Categoria"}, f.Types)
	}
	if f.Purpose != "" {
		put([]string{"Finalidade"}, f.Purpose)
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		max := f.MaxPrice
		if max <= 0 {
			max = 999_999_999
		}
		put([]string{"ValorVenda"}, []float64{f.MinPrice, max})
	}
	putSelection(put, []string{"Dormitorios", "Quartos"}, f.Bedrooms)
	putSelection(put, []string{"Suites"}, f.Suites)
	putSelection(put, []string{"Vagas", "VagasGaragem"}, f.Parking)
	if f.Code != "" {
		put([]string{"Codigo"}, f.Code)
	}
	if !f.UpdatedSince.IsZero() {
		put([]string{"DataAtualizacao"}, []string{">=", f.UpdatedSince.Format("2006-01-02")})
	}
	return out
}

func putSelection(put func([]string, any), candidates []string, sel *IntSelection) {
	if sel == nil || sel.Value <= 0 {
		return
	}
	if sel.OrMore {
		put(candidates, []any{">=", sel.Value})
		return
	}
	put(candidates, sel.Value)
}

func (f Filters) serverOrder(reg *Registry) map[string]string {
	if f.SortKey == "" {
		return nil
	}
	name, ok := reg.Resolve(sortKeyCandidates(f.SortKey), false)
	if !ok {
		return nil
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return map[string]string{name: dir}
}

func sortKeyCandidates(key string) []string {
	switch canon.FoldKey(key) {
	case "price", "valorvenda":
		return []string{"ValorVenda"}
	case "updatedat", "dataatualizacao":
		return []string{"DataAtualizacao"}
	case "bedrooms", "dormitorios":
		return []string{"Dormitorios", "Quartos"}
	case "area":
		return []string{"AreaTotal"}
	default:
		return []string{key}
	}
}

// ApplyPost applies the client-only predicates against an aggregated result
// set. Both sides of every string comparison go through canon.Fold.
func (f Filters) ApplyPost(list []Property) []Property {
	out := make([]Property, 0, len(list))
	for _, p := range list {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f Filters) matches(p Property) bool {
	// boolean flags are a strict AND
	if f.Exclusive && !p.Exclusive {
		return false
	}
	if f.Launch && !p.Launch {
		return false
	}
	if f.SuperHighlight && !p.SuperHighlight {
		return false
	}
	if f.SeaDistance != "" {
		ceiling, ok := seaDistanceCeilings[canon.Fold(f.SeaDistance)]
		if !ok {
			return false
		}
		if p.SeaDistance == nil || *p.SeaDistance > ceiling {
			return false
		}
	}
	if f.BuildingName != "" && !nameMatches(p.BuildingName, f.BuildingName) {
		return false
	}
	if !tagsMatch(p.Characteristics, f.Characteristics) {
		return false
	}
	if !tagsMatch(p.BuildingFeatures, f.BuildingFeatures) {
		return false
	}
	if !tagsMatch(p.LocationFeatures, f.LocationFeatures) {
		return false
	}
	return true
}

// tagsMatch requires every wanted tag to be present among the record's tags.
// Matching is substring-tolerant in both directions after canonicalization,
// so "Piscina" matches a stored "piscina aquecida" and vice versa.
func tagsMatch(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	folded := make([]string, 0, len(have))
	for _, h := range have {
		if f := canon.Fold(h); f != "" {
			folded = append(folded, f)
		}
	}
	for _, w := range want {
		fw := canon.Fold(w)
		if fw == "" {
			continue
		}
		found := false
		for _, fh := range folded {
			if strings.Contains(fh, fw) || strings.Contains(fw, fh) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func nameMatches(have, want string) bool {
	fh, fw := canon.Fold(have), canon.Fold(want)
	if fh == "" || fw == "" {
		return false
	}
	return fh == fw || strings.Contains(fh, fw)
}

// BuildingFilters is the predicate set for the building catalog.
type BuildingFilters struct {
	City string `json:"city,omitempty"`
	Name string `json:"name,omitempty"`
}

func (f BuildingFilters) serverFilter(reg *Registry) map[string]any {
	out := map[string]any{}
	if f.City != "" {
		if name, ok := reg.Resolve([]string{"Cidade"}, true); ok {
			out[name] = f.City
		}
	}
	return out
}

func (f BuildingFilters) applyPost(list []Building) []Building {
	if f.Name == "" {
		return list
	}
	out := make([]Building, 0, len(list))
	for _, b := range list {
		if nameMatches(b.Name, f.Name) {
			out = append(out, b)
		}
	}
	return out
}
