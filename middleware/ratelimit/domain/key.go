package domain

import "strings"

const keySep = "|"

var keyEscaper = strings.NewReplacer("%", "%25", keySep, "%7C")

// MakeKey compõe regra, identidade e um discriminador opcional de recurso em
// uma única chave.
//
// Cada parte é escapada antes da junção, então tuplas diferentes nunca geram a
// mesma chave. Um extra vazio é diferente de nenhum extra.
func MakeKey(rule, identity string, extra ...string) Key {
	var b strings.Builder
	b.WriteString(keyEscaper.Replace(rule))
	b.WriteString(keySep)
	b.WriteString(keyEscaper.Replace(identity))
	for _, e := range extra {
		b.WriteString(keySep)
		b.WriteString(keyEscaper.Replace(e))
	}
	return Key(b.String())
}
