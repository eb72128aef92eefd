package columns

import (
	"regexp"
	"strings"

	"radarsync/internal/parse"
)

// states are the Brazilian federative unit abbreviations.
var states = []string{
	"AC", "AL", "AM", "AP", "BA", "CE", "DF", "ES", "GO", "MA", "MG", "MS", "MT", "PA",
	"PB", "PE", "PI", "PR", "RJ", "RN", "RO", "RR", "RS", "SC", "SE", "SP", "TO",
}

// nonPlace are words that show up in municipality-like text columns but
// never name a place: directions, vehicle classes, equipment and agencies.
var nonPlace = map[string]struct{}{
	"norte": {}, "sul": {}, "leste": {}, "oeste": {}, "crescente": {}, "decrescente": {},
	"ambos": {}, "ambas": {}, "sentido": {}, "centro bairro": {}, "bairro centro": {},
	"leve": {}, "leves": {}, "pesado": {}, "pesados": {}, "caminhao": {}, "caminhoes": {},
	"onibus": {}, "moto": {}, "motos": {}, "veiculo": {}, "veiculos": {},
	"radar": {}, "fixo": {}, "movel": {}, "estatico": {}, "lombada": {}, "eletronica": {},
	"semaforo": {}, "avanco": {}, "controlador": {}, "velocidade": {},
	"ativo": {}, "inativo": {}, "sim": {}, "nao": {}, "em operacao": {}, "desativado": {},
	"der": {}, "dnit": {}, "prf": {}, "detran": {}, "cet": {}, "dner": {}, "artesp": {},
	"antt": {}, "prefeitura": {}, "concessionaria": {},
}

var (
	highwayRe  = regexp.MustCompile(`^(?:BR|[A-Z]{2})\s*-?\s*\d{2,3}\b`)
	streetRe   = regexp.MustCompile(`^(?:ROD|RODOVIA|AV|AVENIDA|RUA|R|ESTRADA|ESTR|AL|ALAMEDA|TRAVESSA|TV|VIADUTO|PONTE|KM)\b`)
	localityRe = regexp.MustCompile(`^[\p{L}][\p{L}' .-]{2,}$`)
	suffixRe   = regexp.MustCompile(`^(.*?)\s*[-/(,]\s*([A-Za-z]{2})\)?$`)
)

// IsState reports whether s is a federative unit abbreviation.
func IsState(s string) bool {
	for _, st := range states {
		if strings.EqualFold(st, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// Class is the coarse kind of a text cell.
type Class string

const (
	ClassEmpty    Class = "empty"
	ClassNumber   Class = "number"
	ClassHighway  Class = "highway"
	ClassNonPlace Class = "non-place"
	ClassPlace    Class = "place"
	ClassUnknown  Class = "unknown"
)

// Classify guesses what a cell value names.
func Classify(value string) Class {
	v, ok := parse.Clean(value)
	if !ok {
		return ClassEmpty
	}
	if _, isNum := parse.Float(v); isNum {
		return ClassNumber
	}
	upper := strings.ToUpper(fold(v))
	if highwayRe.MatchString(upper) || streetRe.MatchString(upper) {
		return ClassHighway
	}
	folded := fold(v)
	if _, bad := nonPlace[folded]; bad {
		return ClassNonPlace
	}
	for _, tok := range tokens(folded) {
		if _, bad := nonPlace[tok]; bad {
			return ClassNonPlace
		}
	}
	name, _ := SplitState(v)
	if localityRe.MatchString(name) {
		return ClassPlace
	}
	return ClassUnknown
}

// SplitState separates a trailing state suffix from a place name:
// "Campinas - SP", "Campinas/SP" and "Campinas (SP)" all yield
// ("Campinas", "SP"). The state is empty when there is no valid suffix.
func SplitState(text string) (string, string) {
	text = strings.TrimSpace(text)
	m := suffixRe.FindStringSubmatch(text)
	if m == nil || !IsState(m[2]) || strings.TrimSpace(m[1]) == "" {
		return text, ""
	}
	return strings.TrimSpace(m[1]), strings.ToUpper(m[2])
}
