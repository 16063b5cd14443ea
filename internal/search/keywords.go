package search

import "strings"

// Portuguese stopwords trimmed to the words that actually show up in consumer
// complaint queries.
var ptStopwords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "um": {}, "uma": {}, "uns": {}, "umas": {},
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {}, "em": {}, "no": {}, "na": {},
	"nos": {}, "nas": {}, "por": {}, "para": {}, "pra": {}, "com": {}, "sem": {},
	"sobre": {}, "entre": {}, "que": {}, "e": {}, "ou": {}, "mas": {}, "se": {},
	"ao": {}, "aos": {}, "à": {}, "às": {}, "pelo": {}, "pela": {}, "pelos": {}, "pelas": {},
	"é": {}, "foi": {}, "ser": {}, "ter": {}, "há": {}, "não": {}, "sim": {},
	"meu": {}, "minha": {}, "seu": {}, "sua": {}, "este": {}, "esta": {}, "esse": {}, "essa": {},
	"isso": {}, "isto": {}, "ele": {}, "ela": {}, "eles": {}, "elas": {}, "eu": {}, "você": {},
	"quando": {}, "como": {}, "onde": {}, "qual": {}, "quais": {}, "muito": {}, "mais": {},
}

// Legal vocabulary kept even when a single short token, since dropping it
// guts the query ("réu", "dano").
var legalVocab = map[string]struct{}{
	"dano": {}, "danos": {}, "moral": {}, "morais": {}, "material": {}, "materiais": {},
	"indenização": {}, "indenizar": {}, "réu": {}, "ré": {}, "autor": {}, "autora": {},
	"sentença": {}, "acórdão": {}, "apelação": {}, "recurso": {}, "liminar": {},
	"negativação": {}, "inscrição": {}, "indevida": {}, "indevido": {}, "serasa": {},
	"spc": {}, "cadastro": {}, "inadimplentes": {}, "consumidor": {}, "cdc": {},
	"contrato": {}, "cobrança": {}, "fraude": {}, "golpe": {}, "estorno": {},
	"juros": {}, "multa": {}, "honorários": {}, "procedente": {}, "improcedente": {},
}

// ExtractKeywords drops stopwords and noise tokens from a query, keeping
// recognized legal vocabulary unconditionally. Order is preserved.
func ExtractKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if f == "" {
			continue
		}
		if _, legal := legalVocab[f]; legal {
			out = append(out, f)
			continue
		}
		if _, stop := ptStopwords[f]; stop {
			continue
		}
		if len([]rune(f)) < 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}
