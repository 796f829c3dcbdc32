// Package sanitize приводит пользовательский ввод к простому тексту без HTML.
package sanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses ограничивает число проходов для многократно экранированного ввода.
const maxPasses = 5

var policy = bluemonday.StrictPolicy()

// Text вырезает теги и возвращает простой текст: "Card & bank" остаётся как есть,
// а экранированная разметка ("&lt;script&gt;") тоже удаляется. Проход
// повторяется, пока результат не перестанет меняться. Если этого не случилось
// за maxPasses проходов, возвращается экранированный вывод политики.
func Text(s string) string {
	cur := s
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(policy.Sanitize(cur))
		if next == cur {
			return cur
		}
		cur = next
	}
	return policy.Sanitize(cur)
}
