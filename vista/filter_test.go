package vista

import (
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

// TestTagsMatchSubstringTolerant covers the bidirectional substring matching
// with accent and case canonicalization.
func TestTagsMatchSubstringTolerant(t *testing.T) {
	cases := []struct {
		name string
		have []string
		want []string
		ok   bool
	}{
		{"exact", []string{"Piscina"}, []string{"Piscina"}, true},
		{"stored is longer", []string{"Piscina Aquecida"}, []string{"Piscina"}, true},
		{"wanted is longer", []string{"Piscina"}, []string{"Piscina Aquecida"}, true},
		{"accent and case", []string{"ACADEMIA"}, []string{"académia"}, true},
		{"all wanted tags required", []string{"Piscina", "Academia"}, []string{"Piscina", "Academia"}, true},
		{"one wanted tag missing", []string{"Piscina"}, []string{"Piscina", "Academia"}, false},
		{"unrelated", []string{"Churrasqueira"}, []string{"Piscina"}, false},
		{"no wanted tags", nil, nil, true},
		{"empty record tags", nil, []string{"Piscina"}, false},
	}
	for _, c := range cases {
		if got := tagsMatch(c.have, c.want); got != c.ok {
			t.Errorf("%s: tagsMatch(%v, %v) = %v, want %v", c.name, c.have, c.want, got, c.ok)
		}
	}
}

// TestSeaDistanceBuckets verifies bucket ceilings and that an unknown
// distance never matches.
func TestSeaDistanceBuckets(t *testing.T) {
	cases := []struct {
		bucket   string
		distance *float64
		ok       bool
	}{
		{"frente-mar", floatPtr(30), true},
		{"frente-mar", floatPtr(50), true},
		{"frente-mar", floatPtr(51), false},
		{"quadra-mar", floatPtr(100), true},
		{"segunda-quadra", floatPtr(150), true},
		{"terceira-quadra", floatPtr(299), true},
		{"ate-500m", floatPtr(480), true},
		{"ate-1km", floatPtr(999), true},
		{"ate-1km", floatPtr(1500), false},
		{"frente-mar", nil, false},
		{"bucket-desconhecido", floatPtr(10), false},
	}
	for _, c := range cases {
		f := Filters{SeaDistance: c.bucket}
		p := Property{SeaDistance: c.distance}
		if got := f.matches(p); got != c.ok {
			t.Errorf("bucket %s distance %v: matches = %v, want %v", c.bucket, c.distance, got, c.ok)
		}
	}
}

// TestBooleanFlagsAreStrictAND verifies each requested flag must be set.
func TestBooleanFlagsAreStrictAND(t *testing.T) {
	prop := Property{Exclusive: true, Launch: false, SuperHighlight: true}

	if !(Filters{Exclusive: true}).matches(prop) {
		t.Error("exclusive-only filter should match")
	}
	if (Filters{Exclusive: true, Launch: true}).matches(prop) {
		t.Error("launch flag unset on the record; combined filter must not match")
	}
	if !(Filters{Exclusive: true, SuperHighlight: true}).matches(prop) {
		t.Error("both requested flags are set; filter should match")
	}
	if !(Filters{}).matches(prop) {
		t.Error("no flags requested; everything matches")
	}
}

// TestHasClientOnly enumerates which predicates force reconciliation.
func TestHasClientOnly(t *testing.T) {
	clientOnly := []Filters{
		{Characteristics: []string{"Piscina"}},
		{BuildingFeatures: []string{"Salão de Festas"}},
		{LocationFeatures: []string{"Frente Mar"}},
		{SeaDistance: "frente-mar"},
		{BuildingName: "Atlântico"},
		{Exclusive: true},
		{Launch: true},
		{SuperHighlight: true},
	}
	for i, f := range clientOnly {
		if !f.HasClientOnly() {
			t.Errorf("case %d: expected client-only predicate", i)
		}
	}
	serverSide := []Filters{
		{},
		{City: "Itapema"},
		{Types: []string{"Apartamento"}, MinPrice: 100000, MaxPrice: 900000},
		{Bedrooms: &IntSelection{Value: 3, OrMore: true}},
		{Code: "1025"},
	}
	for i, f := range serverSide {
		if f.HasClientOnly() {
			t.Errorf("case %d: server-expressible filter flagged client-only", i)
		}
	}
}

// TestServerFilterTranslation verifies the upstream filter shape for the
// server-expressible predicates.
func TestServerFilterTranslation(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Seed([]string{"Cidade", "Categoria", "Finalidade", "ValorVenda", "Dormitorios", "Vagas", "Codigo", "DataAtualizacao"})

	f := Filters{
		City:         "Itapema",
		Types:        []string{"Apartamento", "Cobertura"},
		Purpose:      "Venda",
		MinPrice:     200000,
		MaxPrice:     800000,
		Bedrooms:     &IntSelection{Value: 3, OrMore: true},
		Parking:      &IntSelection{Value: 2},
		Code:         "1025",
		UpdatedSince: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	out := f.serverFilter(reg)

	if out["Cidade"] != "Itapema" {
		t.Errorf("Cidade = %v", out["Cidade"])
	}
	if types, ok := out["Categoria"].([]string); !ok || len(types) != 2 {
		t.Errorf("Categoria = %v", out["Categoria"])
	}
	if rng, ok := out["ValorVenda"].([]float64); !ok || rng[0] != 200000 || rng[1] != 800000 {
		t.Errorf("ValorVenda = %v", out["ValorVenda"])
	}
	if sel, ok := out["Dormitorios"].([]any); !ok || sel[0] != ">=" || sel[1] != 3 {
		t.Errorf("Dormitorios = %v", out["Dormitorios"])
	}
	if out["Vagas"] != 2 {
		t.Errorf("Vagas = %v", out["Vagas"])
	}
	if out["Codigo"] != "1025" {
		t.Errorf("Codigo = %v", out["Codigo"])
	}
	if rng, ok := out["DataAtualizacao"].([]string); !ok || rng[0] != ">=" || rng[1] != "2026-08-01" {
		t.Errorf("DataAtualizacao = %v", out["DataAtualizacao"])
	}
	if _, present := out["Caracteristicas"]; present {
		t.Error("client-only predicates must not leak into the server filter")
	}
}

// TestServerFilterSkipsBlockedFields verifies a blocked filter field is
// silently dropped instead of poisoning the request.
func TestServerFilterSkipsBlockedFields(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Seed([]string{"Cidade", "ValorVenda"})
	reg.Block("ValorVenda")

	out := Filters{City: "Itapema", MinPrice: 100000}.serverFilter(reg)
	if _, present := out["ValorVenda"]; present {
		t.Error("blocked field leaked into the server filter")
	}
	if out["Cidade"] != "Itapema" {
		t.Errorf("Cidade = %v", out["Cidade"])
	}
}

// TestServerOrderSortKeys verifies logical sort keys resolve to upstream
// field names with direction.
func TestServerOrderSortKeys(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Seed([]string{"ValorVenda", "DataAtualizacao", "Dormitorios"})

	ord := Filters{SortKey: "price", SortDesc: true}.serverOrder(reg)
	if ord["ValorVenda"] != "DESC" {
		t.Errorf("price sort = %v", ord)
	}
	ord = Filters{SortKey: "updatedAt"}.serverOrder(reg)
	if ord["DataAtualizacao"] != "ASC" {
		t.Errorf("updatedAt sort = %v", ord)
	}
	if ord := (Filters{}).serverOrder(reg); ord != nil {
		t.Errorf("no sort key should produce no order clause, got %v", ord)
	}
}

// TestBuildingNameMatch covers canonicalized exact and prefix matching.
func TestBuildingNameMatch(t *testing.T) {
	prop := Property{BuildingName: "Edifício Costa Esmeralda"}
	if !(Filters{BuildingName: "edificio costa esmeralda"}).matches(prop) {
		t.Error("accent-insensitive exact match failed")
	}
	if !(Filters{BuildingName: "Costa Esmeralda"}).matches(prop) {
		t.Error("partial name should match within the stored name")
	}
	if (Filters{BuildingName: "Costa Azul"}).matches(prop) {
		t.Error("unrelated name must not match")
	}
	if (Filters{BuildingName: "Esmeralda"}).matches(Property{}) {
		t.Error("record without a building name must not match")
	}
}
