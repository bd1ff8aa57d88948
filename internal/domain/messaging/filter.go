package messaging

import "regexp"

// Hidden reemplaza cada dato de contacto detectado.
const Hidden = "[hidden]"

// El orden importa: primero emails (si no, el dominio del email cae como URL),
// después URLs, IBAN y por último teléfonos.
var contactPatterns = []*regexp.Regexp{
	// email
	regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`),
	// URLs explícitas
	regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`),
	// dominios sueltos con TLDs habituales en BE/NL
	regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9\-]*(?:\.[a-z0-9\-]+)*\.(?:com|be|nl|net|org|eu|io|me)\b(?:/\S*)?`),
	// IBAN (en mayúsculas, con o sin espacios)
	regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){2,7}(?:\s?[A-Z0-9]{1,3})?\b`),
	// teléfonos internacionales BE (+32/0032) y NL (+31/0031)
	regexp.MustCompile(`(?:\+|00)(?:32|31)[\s./-]?(?:\(0\))?\d(?:[\s./-]?\d){7,9}`),
	// teléfonos nacionales: 0 + 8 o 9 dígitos
	regexp.MustCompile(`\b0\d(?:[\s./-]?\d){7,8}\b`),
}

// FilterContent enmascara datos de contacto (emails, URLs, IBAN, teléfonos)
// para que la relación no salga de la plataforma. redacted indica si se tocó algo.
func FilterContent(body string) (filtered string, redacted bool) {
	filtered = body
	for _, re := range contactPatterns {
		if re.MatchString(filtered) {
			filtered = re.ReplaceAllString(filtered, Hidden)
			redacted = true
		}
	}
	return filtered, redacted
}
