package vista

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeCRM emulates the upstream's wire contract closely enough for the
// orchestrator, registry, photo engine and lead tests: index-keyed listing
// envelopes, pesquisa-driven field lists, per-field 400 rejections and a
// schema listing.
type fakeCRM struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	records      []RawRecord
	details      map[string]RawRecord
	photos       map[string]any // raw /imoveis/fotos body per code
	schemaFields []string
	rejectFields map[string]bool

	listCalls       int
	detailCalls     int
	photoCalls      int
	schemaCalls     int
	leadCalls       int
	requestedFields [][]string

	// failListStatus makes the next failListTimes /listar calls answer with
	// the given status.
	failListStatus int
	failListTimes  int
	// failFromPage makes /listar fail for pages >= the value (0 disables).
	failFromPage int
	// repeatBoundary makes every page past the first open with the closing
	// record of the page before it, like some upstreams do.
	repeatBoundary bool

	leadResponse any
	leadStatus   int
}

func newFakeCRM(t *testing.T) *fakeCRM {
	f := &fakeCRM{
		t:       t,
		details: map[string]RawRecord{},
		photos:  map[string]any{},
		schemaFields: []string{
			"Codigo", "Categoria", "Finalidade", "Status", "Endereco", "Numero",
			"Bairro", "Cidade", "UF", "Latitude", "Longitude",
			"ValorVenda", "ValorLocacao", "ValorCondominio", "ValorIptu",
			"Dormitorios", "Suites", "Vagas", "AreaTotal", "AreaPrivativa",
			"Caracteristicas", "InfraEstrutura", "DistanciaMar",
			"Empreendimento", "CodigoEmpreendimento", "Foto", "FotoDestaque",
			"Exclusivo", "Lancamento", "SuperDestaque", "DataAtualizacao",
		},
		rejectFields: map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/imoveis/listar", f.handleList)
	mux.HandleFunc("/imoveis/detalhes", f.handleDetail)
	mux.HandleFunc("/imoveis/fotos", f.handlePhotos)
	mux.HandleFunc("/imoveis/listarcampos", f.handleSchema)
	mux.HandleFunc("/empreendimentos/listar", f.handleList)
	mux.HandleFunc("/empreendimentos/detalhes", f.handleDetail)
	mux.HandleFunc("/clientes/enviarLeads", f.handleLead)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCRM) client(retryMax int) *Client {
	return NewClient(ClientConfig{
		APIKey:   "test-key",
		BaseURL:  f.srv.URL,
		RetryMax: retryMax,
		Timeout:  5 * time.Second,
	})
}

func (f *fakeCRM) provider(opts Options) *Provider {
	return NewProvider(f.client(1), opts)
}

// providerNoRetry avoids retry backoff sleeps in failure-injection tests.
func (f *fakeCRM) providerNoRetry(opts Options) *Provider {
	return NewProvider(f.client(-1), opts)
}

type fakePesquisa struct {
	Fields []any          `json:"fields"`
	Filter map[string]any `json:"filter"`
	Paging *struct {
		Pagina     int `json:"pagina"`
		Quantidade int `json:"quantidade"`
	} `json:"paginacao"`
}

func parsePesquisa(r *http.Request) fakePesquisa {
	var p fakePesquisa
	_ = json.Unmarshal([]byte(r.URL.Query().Get("pesquisa")), &p)
	return p
}

func fieldNames(fields []any) []string {
	var out []string
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			for name := range v {
				out = append(out, name)
			}
		}
	}
	return out
}

func (f *fakeCRM) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.listCalls++
	p := parsePesquisa(r)
	names := fieldNames(p.Fields)
	f.requestedFields = append(f.requestedFields, names)

	if f.failListStatus != 0 && f.failListTimes > 0 {
		f.failListTimes--
		status := f.failListStatus
		f.mu.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, `{"message":"induced failure"}`)
		return
	}
	for _, name := range names {
		if f.rejectFields[name] {
			f.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": fmt.Sprintf("field %s is not available", name),
			})
			return
		}
	}
	records := f.filteredRecords(p.Filter)
	failFrom := f.failFromPage
	repeat := f.repeatBoundary
	f.mu.Unlock()

	page, size := 1, ServerMaxPageSize
	if p.Paging != nil {
		if p.Paging.Pagina > 0 {
			page = p.Paging.Pagina
		}
		if p.Paging.Quantidade > 0 {
			size = p.Paging.Quantidade
		}
	}
	if failFrom > 0 && page >= failFrom {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"induced page failure"}`)
		return
	}
	total := len(records)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	env := map[string]any{
		"total":      total,
		"paginas":    (total + size - 1) / size,
		"pagina":     page,
		"quantidade": size,
	}
	slice := records[start:end]
	if repeat && start > 0 {
		slice = append([]RawRecord{records[start-1]}, slice...)
	}
	for i, rec := range slice {
		env[fmt.Sprintf("%d", i+1)] = rec
	}
	_ = json.NewEncoder(w).Encode(env)
}

func (f *fakeCRM) filteredRecords(filter map[string]any) []RawRecord {
	if len(filter) == 0 {
		return f.records
	}
	out := make([]RawRecord, 0, len(f.records))
	for _, rec := range f.records {
		ok := true
		for key, want := range filter {
			if ws, isStr := want.(string); isStr {
				if rv, _ := rec[key].(string); rv != ws {
					ok = false
					break
				}
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func (f *fakeCRM) handleDetail(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.detailCalls++
	p := parsePesquisa(r)
	for _, name := range fieldNames(p.Fields) {
		if f.rejectFields[name] {
			f.mu.Unlock()
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": fmt.Sprintf("field %s is not available", name),
			})
			return
		}
	}
	code := r.URL.Query().Get("imovel")
	if code == "" {
		code = r.URL.Query().Get("empreendimento")
	}
	rec, ok := f.details[code]
	f.mu.Unlock()
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	_ = json.NewEncoder(w).Encode(rec)
}

func (f *fakeCRM) handlePhotos(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.photoCalls++
	body, ok := f.photos[r.URL.Query().Get("imovel")]
	f.mu.Unlock()
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{})
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeCRM) handleSchema(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.schemaCalls++
	fields := f.schemaFields
	f.mu.Unlock()
	out := map[string]any{}
	for _, name := range fields {
		out[name] = []string{}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeCRM) handleLead(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.leadCalls++
	resp := f.leadResponse
	status := f.leadStatus
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
	if resp == nil {
		resp = map[string]any{"status": 200, "message": "lead recebido"}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeCRM) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeCRM) detailCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

func (f *fakeCRM) leadCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leadCalls
}

func (f *fakeCRM) fieldListsSeen() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.requestedFields))
	copy(out, f.requestedFields)
	return out
}

func (f *fakeCRM) add(rec RawRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

// seedRecords installs n generated records for a city.
func (f *fakeCRM) seedRecords(n int, city string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i <= n; i++ {
		f.records = append(f.records, RawRecord{
			"Codigo":     fmt.Sprintf("%d", 1000+i),
			"Categoria":  "Apartamento",
			"Cidade":     city,
			"ValorVenda": float64(300000 + i*1000),
		})
	}
}
