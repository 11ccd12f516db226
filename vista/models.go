package vista

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// RawRecord is one upstream record exactly as received. It travels with the
// mapped Property so downstream enrichment can reach fields this layer does
// not model.
type RawRecord map[string]any

// flexInt accepts JSON numbers and numeric strings; the upstream mixes both
// for pagination metadata.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(int(n))
	return nil
}

// listEnvelope metadata keys; everything else in the response object is a
// positionally-indexed record.
var envelopeMetaKeys = map[string]bool{
	"total": true, "paginas": true, "pagina": true, "quantidade": true,
	"status": true, "message": true,
}

// ListEnvelope is a decoded /listar response: an object keyed by positional
// index ("1", "2", ...) carrying total/paginas/pagina/quantidade metadata
// alongside the records.
type ListEnvelope struct {
	Records  []RawRecord
	Total    int
	Pages    int
	Page     int
	PageSize int
}

func (e *ListEnvelope) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		// some tenants return a bare array when the page is empty
		var arr []RawRecord
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		e.Records = arr
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	var meta struct {
		Total      flexInt `json:"total"`
		Paginas    flexInt `json:"paginas"`
		Pagina     flexInt `json:"pagina"`
		Quantidade flexInt `json:"quantidade"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}
	e.Total = int(meta.Total)
	e.Pages = int(meta.Paginas)
	e.Page = int(meta.Pagina)
	e.PageSize = int(meta.Quantidade)

	type indexed struct {
		idx int
		rec RawRecord
	}
	rows := make([]indexed, 0, len(obj))
	for k, v := range obj {
		if envelopeMetaKeys[strings.ToLower(k)] {
			continue
		}
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue // unknown metadata key, not a record
		}
		var rec RawRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			continue
		}
		rows = append(rows, indexed{idx: idx, rec: rec})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].idx < rows[j].idx })
	e.Records = make([]RawRecord, 0, len(rows))
	for _, r := range rows {
		e.Records = append(e.Records, r.rec)
	}
	return nil
}

// IndexedList decodes a field that may arrive as an array, as an object keyed
// by positional index, or not at all. All three normalize to a slice.
type IndexedList[T any] struct {
	Items []T
}

func (l *IndexedList[T]) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" || trimmed == `""` {
		l.Items = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(b, &l.Items)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	type indexed struct {
		idx  int
		item T
	}
	rows := make([]indexed, 0, len(obj))
	for k, v := range obj {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			continue
		}
		rows = append(rows, indexed{idx: idx, item: item})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].idx < rows[j].idx })
	l.Items = make([]T, 0, len(rows))
	for _, r := range rows {
		l.Items = append(l.Items, r.item)
	}
	return nil
}

// searchPayload is the JSON object sent as the `pesquisa` query parameter.
// Fields mixes plain names and {field: [subfields]} descriptors.
type searchPayload struct {
	Fields []any             `json:"fields"`
	Filter map[string]any    `json:"filter,omitempty"`
	Order  map[string]string `json:"order,omitempty"`
	Paging *searchPaging     `json:"paginacao,omitempty"`
}

type searchPaging struct {
	Page     int `json:"pagina"`
	PageSize int `json:"quantidade"`
}

func (p searchPayload) clone() searchPayload {
	out := p
	out.Fields = append([]any(nil), p.Fields...)
	if p.Filter != nil {
		out.Filter = make(map[string]any, len(p.Filter))
		for k, v := range p.Filter {
			out.Filter[k] = v
		}
	}
	if p.Order != nil {
		out.Order = make(map[string]string, len(p.Order))
		for k, v := range p.Order {
			out.Order[k] = v
		}
	}
	if p.Paging != nil {
		pg := *p.Paging
		out.Paging = &pg
	}
	return out
}

// leadEnvelope normalizes lead submission responses: the upstream answers
// with assorted shapes ({status, message} or {success, errors}).
type leadEnvelope struct {
	Success *bool           `json:"success"`
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}
