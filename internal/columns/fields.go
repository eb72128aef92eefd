// Package columns infers which column of an unlabeled or loosely labeled
// table holds which radar attribute. Every decision is returned and logged
// with its rationale, since no provider keeps the same layout twice.
package columns

import "strings"

// Field is a semantic attribute a column can hold.
type Field int

const (
	Latitude Field = iota
	Longitude
	SpeedHeavy
	Speed
	Distance
	Region
	Municipality
	Highway
	Direction
	Status
	Operator
	RadarKind
	numFields
)

var fieldNames = [numFields]string{
	Latitude:     "latitude",
	Longitude:    "longitude",
	SpeedHeavy:   "speed_heavy",
	Speed:        "speed",
	Distance:     "distance",
	Region:       "region",
	Municipality: "municipality",
	Highway:      "highway",
	Direction:    "direction",
	Status:       "status",
	Operator:     "operator",
	RadarKind:    "radar_kind",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// keyword matches a folded header. Whole keywords must equal one token;
// the others may appear anywhere in the header.
type keyword struct {
	text  string
	whole bool
}

func sub(s ...string) []keyword {
	out := make([]keyword, len(s))
	for i, t := range s {
		out[i] = keyword{text: t}
	}
	return out
}

func whole(s ...string) []keyword {
	out := make([]keyword, len(s))
	for i, t := range s {
		out[i] = keyword{text: t, whole: true}
	}
	return out
}

type rule struct {
	include []keyword
	exclude []string
}

// nameOrder is the order header rules are tried in, so more specific fields
// claim a column first (heavy speed before speed, municipality before region
// and highway).
var nameOrder = []Field{
	Latitude, Longitude, SpeedHeavy, Speed, Distance, Municipality,
	Region, Highway, Direction, Status, Operator, RadarKind,
}

var rules = [numFields]rule{
	Latitude: {
		include: append(sub("lat"), whole("y")...),
		exclude: []string{"lon"},
	},
	Longitude: {
		include: append(sub("lon", "lng"), whole("x")...),
		exclude: []string{"lat"},
	},
	SpeedHeavy: {
		include: sub("pesad", "caminh", "heavy"),
		exclude: []string{"tipo", "qtd", "quantidade"},
	},
	Speed: {
		include: append(sub("velocidade", "veloc", "limite", "speed", "leve"), whole("vel", "vm", "vmax")...),
		exclude: []string{"pesad", "caminh", "heavy", "media", "registrada"},
	},
	Distance: {
		include: append(sub("quilometr", "marco"), whole("km", "kms")...),
		exclude: []string{"vel", "limite", "speed", "extensao"},
	},
	Region: {
		include: append(sub("estado", "state", "regiao", "region"), whole("uf")...),
		exclude: []string{"cod"},
	},
	Municipality: {
		include: append(sub("municipio", "cidade", "city", "localidade"), whole("mun")...),
		exclude: []string{"cod", "ibge"},
	},
	Highway: {
		include: append(sub("rodovia", "highway", "estrada", "logradouro", "endereco"), whole("br", "rod", "via", "local")...),
		exclude: []string{"sentido", "km"},
	},
	Direction: {
		include: sub("sentido", "direcao", "direction", "pista"),
	},
	Status: {
		include: append(sub("situacao", "status"), whole("ativo")...),
	},
	Operator: {
		include: sub("operador", "orgao", "concessionaria", "responsavel", "operator", "administra"),
	},
	RadarKind: {
		include: sub("tipo", "equipamento", "kind", "type", "categoria", "descricao"),
		exclude: []string{"veiculo"},
	},
}

func (r rule) match(folded string) (string, bool) {
	for _, ex := range r.exclude {
		if strings.Contains(folded, ex) {
			return "", false
		}
	}
	toks := tokens(folded)
	for _, kw := range r.include {
		if kw.whole {
			for _, t := range toks {
				if t == kw.text {
					return kw.text, true
				}
			}
			continue
		}
		if strings.Contains(folded, kw.text) {
			return kw.text, true
		}
	}
	return "", false
}
