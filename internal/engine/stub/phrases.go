package stub

import (
	"fmt"
	"strings"
)

type phraseKey struct {
	src, tgt, text string
}

// english maps known English inputs to translations keyed by target code.
var english = map[string]map[string]string{
	"I love walking my dog.": {
		"fra_Latn": "J'adore promener mon chien.",
		"spa_Latn": "Me encanta pasear a mi perro.",
		"deu_Latn": "Ich gehe gerne mit meinem Hund spazieren.",
		"ita_Latn": "Adoro portare a spasso il mio cane.",
		"jpn_Jpan": "私は犬の散歩が大好きです。",
		"zho_Hans": "我喜欢遛狗。",
	},
	"Hello, world!": {
		"fra_Latn": "Bonjour le monde !",
		"spa_Latn": "¡Hola, mundo!",
		"deu_Latn": "Hallo, Welt!",
		"ita_Latn": "Ciao, mondo!",
		"jpn_Jpan": "こんにちは世界！",
		"zho_Hans": "你好，世界！",
	},
	"Good morning.": {
		"fra_Latn": "Bonjour.",
		"spa_Latn": "Buenos días.",
		"deu_Latn": "Guten Morgen.",
	},
	"Thank you very much.": {
		"fra_Latn": "Merci beaucoup.",
		"spa_Latn": "Muchas gracias.",
		"deu_Latn": "Vielen Dank.",
	},
}

var phrases = func() map[phraseKey]string {
	m := make(map[phraseKey]string)
	for en, targets := range english {
		for tgt, out := range targets {
			m[phraseKey{"eng_Latn", tgt, normalize(en)}] = out
			m[phraseKey{tgt, "eng_Latn", normalize(out)}] = en
		}
	}
	return m
}()

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Translate returns the stub translation of text. Identity pairs echo the
// input, known phrases use the table, anything else is tagged with the target.
func Translate(text, src, tgt string) string {
	text = strings.TrimSpace(text)
	if src == tgt {
		return text
	}
	if out, ok := phrases[phraseKey{src, tgt, normalize(text)}]; ok {
		return out
	}
	return fmt.Sprintf("[%s] %s", tgt, text)
}
