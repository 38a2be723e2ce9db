package quality

import "github.com/labqc-mcp-server/internal/domain"

var reasonLabels = map[domain.ReasonCode]string{
	domain.HIGH_NOISE:          "Много шума / нераспознанных строк в тексте",
	domain.LOW_DIGIT_RATIO:     "Мало строк с числами — возможно, документ не содержит таблицы",
	domain.LOW_BIOMARKER_RATIO: "Мало строк с известными показателями",
	domain.TOO_FEW_LINES:       "Слишком мало строк OCR — документ может быть обрезан",
	domain.LOW_COVERAGE:        "Низкий процент успешно распознанных строк",
	domain.MANY_OUTLIERS:       "Много аномальных значений — возможны ошибки OCR",
	domain.MANY_SUSPICIOUS:     "Много подозрительных показателей (без единиц/референсов)",
}

// HumanReason returns the user-facing label for a reason code. Unknown
// codes are returned as is.
func HumanReason(code domain.ReasonCode) string {
	if label, ok := reasonLabels[code]; ok {
		return label
	}
	return string(code)
}
