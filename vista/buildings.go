package vista

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// BuildingResult is a reconciled building-catalog page.
type BuildingResult struct {
	Buildings  []Building `json:"buildings"`
	Pagination Page       `json:"pagination"`
}

var buildingFieldCandidates = [][]string{
	{"Codigo", "CodigoEmpreendimento"},
	{"Empreendimento", "NomeEmpreendimento", "Nome"},
	{"Status", "SituacaoObra"},
	{"Endereco"},
	{"Bairro"},
	{"Cidade"},
	{"UF", "Estado"},
	{"Latitude"},
	{"Longitude"},
	{"InfraEstrutura", "Infraestrutura"},
	{"DataEntrega", "PrevisaoEntrega"},
}

func (p *Provider) buildBuildingFields() []any {
	fields := make([]any, 0, len(buildingFieldCandidates))
	for _, candidates := range buildingFieldCandidates {
		if name, ok := p.registry.Resolve(candidates, true); ok {
			fields = append(fields, name)
		}
	}
	return fields
}

// ListBuildings pages through the empreendimento catalog. Name filters are
// applied client-side with the same reconciliation rules as properties.
func (p *Provider) ListBuildings(ctx context.Context, f BuildingFilters, page, limit int) (BuildingResult, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > ServerMaxPageSize {
		limit = ServerMaxPageSize
	}
	p.registry.EnsureLoaded(ctx, p.client)

	req := searchPayload{
		Fields: p.buildBuildingFields(),
		Filter: f.serverFilter(p.registry),
		Paging: &searchPaging{Page: page, PageSize: limit},
	}
	env, err := p.client.ListBuildingRecords(ctx, req)
	var ufe *UnsupportedFieldError
	if errors.As(err, &ufe) {
		p.registry.Block(ufe.Field)
		retry := req.clone()
		retry.Fields = RemoveField(retry.Fields, ufe.Field)
		env, err = p.client.ListBuildingRecords(ctx, retry)
	}
	if err != nil {
		return BuildingResult{}, fmt.Errorf("list buildings: %w", err)
	}

	buildings := make([]Building, 0, len(env.Records))
	for _, rec := range env.Records {
		b, err := MapRecordToBuilding(rec)
		if err != nil {
			p.metrics.MappingFailure(rawString(rec, "Codigo"))
			log.Printf("[WARN] vista: skipping unmappable building record: %v", err)
			continue
		}
		buildings = append(buildings, b)
	}
	filtered := f.applyPost(buildings)

	total := env.Total
	if f.Name != "" {
		// name is client-only; the server total is invalid
		total = len(filtered)
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return BuildingResult{
		Buildings:  filtered,
		Pagination: Page{Page: page, Limit: limit, Total: total, TotalPages: totalPages},
	}, nil
}

// GetBuildingDetails resolves one building record.
func (p *Provider) GetBuildingDetails(ctx context.Context, id string) (Building, error) {
	rec, err := p.client.GetBuildingRecord(ctx, id, p.buildBuildingFields())
	var ufe *UnsupportedFieldError
	if errors.As(err, &ufe) {
		p.registry.Block(ufe.Field)
		rec, err = p.client.GetBuildingRecord(ctx, id, RemoveField(p.buildBuildingFields(), ufe.Field))
	}
	if err != nil {
		return Building{}, fmt.Errorf("get building details: %w", err)
	}
	b, err := MapRecordToBuilding(rec)
	if err != nil {
		return Building{}, fmt.Errorf("get building details %s: %w", id, ErrNotFound)
	}
	return b, nil
}
