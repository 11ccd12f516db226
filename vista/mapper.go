package vista

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/yourorg/listing-gateway/internal/canon"
)

// MapRecordToProperty converts one raw upstream record into the canonical
// Property. Field availability and spelling differ per tenant, so every
// extraction is defensive; an individual malformed record fails here and is
// skipped by the caller without aborting the batch.
func MapRecordToProperty(raw RawRecord) (Property, error) {
	if raw == nil {
		return Property{}, errors.New("nil record")
	}
	code := rawString(raw, "Codigo", "codigo", "CodigoImovel")
	if code == "" {
		return Property{}, errors.New("record missing Codigo")
	}

	p := Property{
		ID:                 code,
		Code:               code,
		Type:               rawString(raw, "Categoria", "TipoImovel"),
		Purpose:            rawString(raw, "Finalidade"),
		Status:             rawString(raw, "Status", "Situacao"),
		ConstructionStatus: rawString(raw, "SituacaoObra", "StatusObra"),
		Address: Address{
			Street:       rawString(raw, "Endereco"),
			Number:       rawString(raw, "Numero"),
			Neighborhood: rawString(raw, "Bairro", "BairroComercial"),
			City:         rawString(raw, "Cidade"),
			State:        rawString(raw, "UF", "Estado"),
			Latitude:     rawFloat(raw, "Latitude"),
			Longitude:    rawFloat(raw, "Longitude"),
		},
		Pricing: Pricing{
			Sale:     rawFloat(raw, "ValorVenda"),
			Rent:     rawFloat(raw, "ValorLocacao"),
			CondoFee: rawFloat(raw, "ValorCondominio"),
			Tax:      rawFloat(raw, "ValorIptu", "ValorIPTU"),
		},
		Specs: Specs{
			Bedrooms:    rawInt(raw, "Dormitorios", "Quartos"),
			Suites:      rawInt(raw, "Suites"),
			Parking:     rawInt(raw, "Vagas", "VagasGaragem"),
			TotalArea:   rawFloat(raw, "AreaTotal"),
			PrivateArea: rawFloat(raw, "AreaPrivativa", "AreaUtil"),
		},
		Characteristics:  rawTags(raw, "Caracteristicas"),
		BuildingFeatures: rawTags(raw, "InfraEstrutura", "Infraestrutura", "CaracteristicasEmpreendimento"),
		LocationFeatures: rawTags(raw, "CaracteristicasLocalizacao", "Localizacao"),
		BuildingID:       rawString(raw, "CodigoEmpreendimento"),
		BuildingName:     rawString(raw, "Empreendimento", "NomeEmpreendimento"),
		Exclusive:        rawBool(raw, "Exclusivo", "ExclusividadeImovel"),
		Launch:           rawBool(raw, "Lancamento"),
		SuperHighlight:   rawBool(raw, "SuperDestaque"),
		UpdatedAt:        rawString(raw, "DataAtualizacao", "DataHoraAtualizacao"),
		ProviderData:     ProviderData{Raw: raw},
	}

	if dist, ok := rawFloatOK(raw, "DistanciaMar", "DistanciaDoMar"); ok {
		p.SeaDistance = &dist
	}

	if photos, ok := raw["Foto"]; ok {
		p.Photos = photosFromAny(photos)
	}
	p.RecomputeGalleryMissing()
	return p, nil
}

// MapRecordToBuilding converts one raw empreendimento record.
func MapRecordToBuilding(raw RawRecord) (Building, error) {
	if raw == nil {
		return Building{}, errors.New("nil record")
	}
	id := rawString(raw, "Codigo", "CodigoEmpreendimento")
	name := rawString(raw, "Empreendimento", "NomeEmpreendimento", "Nome")
	if id == "" && name == "" {
		return Building{}, errors.New("record missing building identity")
	}
	if id == "" {
		id = canon.FoldKey(name)
	}
	return Building{
		ID:     id,
		Name:   name,
		Status: rawString(raw, "Status", "SituacaoObra"),
		Address: Address{
			Street:       rawString(raw, "Endereco"),
			Neighborhood: rawString(raw, "Bairro"),
			City:         rawString(raw, "Cidade"),
			State:        rawString(raw, "UF"),
			Latitude:     rawFloat(raw, "Latitude"),
			Longitude:    rawFloat(raw, "Longitude"),
		},
		Features:     rawTags(raw, "InfraEstrutura", "Caracteristicas"),
		DeliveryDate: rawString(raw, "DataEntrega", "PrevisaoEntrega"),
		ProviderData: ProviderData{Raw: raw},
	}, nil
}

func rawString(raw RawRecord, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return trimFloat(t)
		}
	}
	return ""
}

func rawFloat(raw RawRecord, keys ...string) float64 {
	v, _ := rawFloatOK(raw, keys...)
	return v
}

func rawFloatOK(raw RawRecord, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			// upstream money strings use pt-BR separators
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func rawInt(raw RawRecord, keys ...string) int {
	f, _ := rawFloatOK(raw, keys...)
	return int(f)
}

func rawBool(raw RawRecord, keys ...string) bool {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			switch canon.Fold(t) {
			case "sim", "true", "1", "s":
				return true
			case "nao", "false", "0", "n", "":
				continue
			}
		case float64:
			if t != 0 {
				return true
			}
		}
	}
	return false
}

// rawTags accepts a tag family delivered as an array, an index-keyed object,
// an object of tag->"Sim"/"Nao" flags, or a comma-joined string.
func rawTags(raw RawRecord, keys ...string) []string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var out []string
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
		case map[string]any:
			for name, val := range t {
				switch flag := val.(type) {
				case string:
					if canon.Fold(flag) == "nao" || flag == "" {
						continue
					}
					if _, err := strconv.Atoi(name); err == nil {
						// index-keyed list: the value is the tag
						out = append(out, strings.TrimSpace(flag))
					} else {
						out = append(out, strings.TrimSpace(name))
					}
				case bool:
					if flag {
						out = append(out, strings.TrimSpace(name))
					}
				}
			}
		case string:
			for _, part := range strings.Split(t, ",") {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func photosFromAny(v any) []Photo {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var list IndexedList[rawPhoto]
	if err := list.UnmarshalJSON(b); err != nil {
		return nil
	}
	return convertPhotos(list.Items)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
