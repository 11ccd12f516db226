package vista

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
)

const (
	// ServerMaxPageSize is the upstream's hard pagination cap.
	ServerMaxPageSize = 50

	// wideScanWindow is the minimum fetch window when matches may be
	// scattered across pages (building-name filters).
	wideScanWindow = 200

	// full-scan safety caps for total reconciliation
	fullScanMaxPages   = 20
	fullScanMaxRecords = 1000
)

// Page is the reconciled pagination block returned to callers.
type Page struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResult is a fully reconciled catalog page.
type ListResult struct {
	Properties []Property `json:"properties"`
	Pagination Page       `json:"pagination"`
}

// listFieldCandidates maps each logical list field onto its known spellings
// across tenants, first spelling preferred.
var listFieldCandidates = [][]string{
	{"Codigo"},
	{"Categoria", "TipoImovel"},
	{"Finalidade"},
	{"Status", "Situacao"},
	{"SituacaoObra", "StatusObra"},
	{"Endereco"},
	{"Numero"},
	{"Bairro", "BairroComercial"},
	{"Cidade"},
	{"UF", "Estado"},
	{"Latitude"},
	{"Longitude"},
	{"ValorVenda"},
	{"ValorLocacao"},
	{"ValorCondominio"},
	{"ValorIptu", "ValorIPTU"},
	{"Dormitorios", "Quartos"},
	{"Suites"},
	{"Vagas", "VagasGaragem"},
	{"AreaTotal"},
	{"AreaPrivativa", "AreaUtil"},
	{"Caracteristicas"},
	{"InfraEstrutura", "Infraestrutura"},
	{"DistanciaMar", "DistanciaDoMar"},
	{"Empreendimento", "NomeEmpreendimento"},
	{"CodigoEmpreendimento"},
	{"FotoDestaque"},
	{"Exclusivo", "ExclusividadeImovel"},
	{"Lancamento"},
	{"SuperDestaque"},
	{"DataAtualizacao", "DataHoraAtualizacao"},
}

// buildListFields resolves the candidate table through the registry. Codigo
// is critical; everything else is optional and falls back to the first
// unblocked spelling when the schema listing is unavailable.
func (p *Provider) buildListFields() []any {
	fields := make([]any, 0, len(listFieldCandidates)+1)
	for _, candidates := range listFieldCandidates {
		if name, ok := p.registry.Resolve(candidates, candidates[0] != "Codigo"); ok {
			fields = append(fields, name)
		}
	}
	fields = append(fields, map[string][]string{"Foto": {"Foto", "FotoPequena", "Ordem", "Destaque"}})
	return p.registry.Prune(fields)
}

// listWithFieldRetry issues a listing request, self-healing once when the
// upstream rejects a field: the field is blocked for the process lifetime,
// stripped from the request and the call retried.
func (p *Provider) listWithFieldRetry(ctx context.Context, payload searchPayload) (ListEnvelope, error) {
	env, err := p.client.ListRecords(ctx, payload)
	var ufe *UnsupportedFieldError
	if errors.As(err, &ufe) {
		p.registry.Block(ufe.Field)
		log.Printf("[WARN] vista: blocked unsupported field %q, retrying", ufe.Field)
		retry := payload.clone()
		retry.Fields = RemoveField(retry.Fields, ufe.Field)
		return p.client.ListRecords(ctx, retry)
	}
	return env, err
}

// detailRecord issues a detail request with the same self-healing behavior.
func (p *Provider) detailRecord(ctx context.Context, code string, fields []any) (RawRecord, error) {
	p.registry.EnsureLoaded(ctx, p.client)
	fields = p.registry.Prune(fields)
	rec, err := p.client.GetRecord(ctx, code, fields)
	var ufe *UnsupportedFieldError
	if errors.As(err, &ufe) {
		p.registry.Block(ufe.Field)
		return p.client.GetRecord(ctx, code, RemoveField(fields, ufe.Field))
	}
	return rec, err
}

// ListProperties satisfies a logical (filters, page, limit) request against
// the upstream's 50-record pages: it aggregates as many upstream pages as the
// request needs, applies client-only post-filters, reconciles the true total,
// and hydrates thin photo galleries.
func (p *Provider) ListProperties(ctx context.Context, f Filters, page, limit int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	p.registry.EnsureLoaded(ctx, p.client)

	base := searchPayload{
		Fields: p.buildListFields(),
		Filter: f.serverFilter(p.registry),
		Order:  f.serverOrder(p.registry),
	}

	var (
		props       []Property
		serverTotal int
		scannedAll  bool
		err         error
	)
	switch {
	case f.NeedsWideScan():
		props, serverTotal, scannedAll, err = p.wideScan(ctx, base)
	case limit > ServerMaxPageSize:
		props, serverTotal, scannedAll, err = p.parallelAggregate(ctx, base, page, limit)
	default:
		var env ListEnvelope
		req := base.clone()
		req.Paging = &searchPaging{Page: page, PageSize: limit}
		env, err = p.listWithFieldRetry(ctx, req)
		if err == nil {
			props = p.mapRecords(env.Records)
			serverTotal = env.Total
			scannedAll = env.Pages <= 1
		}
	}
	if err != nil {
		return ListResult{}, fmt.Errorf("list properties: %w", err)
	}

	props = dedupeByID(props)
	filtered := f.ApplyPost(props)

	total := serverTotal
	if f.HasClientOnly() {
		if scannedAll {
			// the aggregate already covers every record the server has
			total = len(f.ApplyPost(props))
		} else {
			total = p.reconcileTotal(ctx, base, f, len(filtered))
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	p.HydrateGalleries(ctx, filtered)
	p.publishDegraded(ctx, filtered)

	// totalPages counts the caller's logical pages, so a limit above the
	// server cap still yields a coherent pager (137 at limit 100 is 2 pages)
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return ListResult{
		Properties: filtered,
		Pagination: Page{Page: page, Limit: limit, Total: total, TotalPages: totalPages},
	}, nil
}

// parallelAggregate satisfies an over-cap logical page by probing the first
// upstream page of its window, then fetching the remaining pages in parallel
// and concatenating them in page-index order. A first-page request scans all
// the way to the end so client-only totals can be counted off the aggregate;
// later pages fetch only their own window. The aggregate is never truncated
// here: the caller slices the served page after post-filtering.
func (p *Provider) parallelAggregate(ctx context.Context, base searchPayload, page, limit int) ([]Property, int, bool, error) {
	offset := (page - 1) * limit
	firstPage := offset/ServerMaxPageSize + 1

	probe := base.clone()
	probe.Paging = &searchPaging{Page: firstPage, PageSize: ServerMaxPageSize}
	env, err := p.listWithFieldRetry(ctx, probe)
	if err != nil {
		return nil, 0, false, err
	}
	total := env.Total
	upstreamPages := (total + ServerMaxPageSize - 1) / ServerMaxPageSize
	if upstreamPages < 1 {
		upstreamPages = 1
	}

	lastPage := (offset + limit + ServerMaxPageSize - 1) / ServerMaxPageSize
	if page == 1 {
		lastPage = upstreamPages
	}
	if lastPage > upstreamPages {
		lastPage = upstreamPages
	}
	if lastPage < firstPage {
		lastPage = firstPage
	}
	// cap the fan-out; anything beyond is more than any caller can page into
	if lastPage-firstPage+1 > fullScanMaxPages {
		lastPage = firstPage + fullScanMaxPages - 1
	}

	pages := make([][]RawRecord, lastPage-firstPage+1)
	pages[0] = env.Records

	g, gctx := errgroup.WithContext(ctx)
	for n := firstPage + 1; n <= lastPage; n++ {
		n := n
		g.Go(func() error {
			req := base.clone()
			req.Paging = &searchPaging{Page: n, PageSize: ServerMaxPageSize}
			pageEnv, err := p.listWithFieldRetry(gctx, req)
			if err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
			pages[n-firstPage] = pageEnv.Records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, false, err
	}

	var records []RawRecord
	for _, pg := range pages {
		records = append(records, pg...)
	}
	// the window rarely starts exactly on an upstream page boundary
	if skip := offset - (firstPage-1)*ServerMaxPageSize; skip > 0 {
		if skip >= len(records) {
			records = nil
		} else {
			records = records[skip:]
		}
	}
	return p.mapRecords(records), total, firstPage == 1 && lastPage >= upstreamPages, nil
}

// wideScan aggregates sequentially up to the forced window, stopping early
// when a page adds zero new records (exhausted data). Returns whether the
// scan consumed everything the server had.
func (p *Provider) wideScan(ctx context.Context, base searchPayload) ([]Property, int, bool, error) {
	seen := make(map[string]bool)
	var props []Property
	total := 0
	exhausted := false
	maxPages := (wideScanWindow + ServerMaxPageSize - 1) / ServerMaxPageSize
	for n := 1; n <= maxPages; n++ {
		req := base.clone()
		req.Paging = &searchPaging{Page: n, PageSize: ServerMaxPageSize}
		env, err := p.listWithFieldRetry(ctx, req)
		if err != nil {
			if n == 1 {
				return nil, 0, false, err
			}
			log.Printf("[WARN] vista wide scan page %d: %v", n, err)
			break
		}
		total = env.Total
		added := 0
		for _, prop := range p.mapRecords(env.Records) {
			if seen[prop.ID] {
				continue
			}
			seen[prop.ID] = true
			props = append(props, prop)
			added++
		}
		if added == 0 || len(env.Records) < ServerMaxPageSize {
			exhausted = true
			break
		}
		if n == maxPages && env.Pages <= maxPages {
			exhausted = true
		}
	}
	return props, total, exhausted, nil
}

// reconcileTotal walks every upstream page (bounded by the safety caps) and
// counts the fully post-filtered set, because the server's total reflects
// only the server-side query. A partial failure falls back to the best-known
// filtered count rather than failing the whole request.
func (p *Provider) reconcileTotal(ctx context.Context, base searchPayload, f Filters, bestKnown int) int {
	count := 0
	scanned := 0
	// upstreams have been seen repeating records across page boundaries
	seen := make(map[string]bool)
	for n := 1; n <= fullScanMaxPages && scanned < fullScanMaxRecords; n++ {
		req := base.clone()
		req.Paging = &searchPaging{Page: n, PageSize: ServerMaxPageSize}
		env, err := p.listWithFieldRetry(ctx, req)
		if err != nil {
			log.Printf("[WARN] vista total reconciliation stopped at page %d: %v", n, err)
			if count > bestKnown {
				return count
			}
			return bestKnown
		}
		scanned += len(env.Records)
		for _, prop := range f.ApplyPost(p.mapRecords(env.Records)) {
			if seen[prop.ID] {
				continue
			}
			seen[prop.ID] = true
			count++
		}
		if len(env.Records) < ServerMaxPageSize {
			break
		}
		if env.Pages > 0 && n >= env.Pages {
			break
		}
	}
	return count
}

// mapRecords runs the domain mapper per record, logging and skipping
// individual failures; partial success beats total failure.
func (p *Provider) mapRecords(records []RawRecord) []Property {
	out := make([]Property, 0, len(records))
	for _, rec := range records {
		prop, err := p.mapRecord(rec)
		if err != nil {
			id := rawString(rec, "Codigo", "codigo")
			p.metrics.MappingFailure(id)
			log.Printf("[WARN] vista: skipping unmappable record %q: %v", id, err)
			continue
		}
		out = append(out, prop)
	}
	return out
}

func dedupeByID(props []Property) []Property {
	seen := make(map[string]bool, len(props))
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
