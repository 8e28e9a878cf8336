package normalizer

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one entry of the value cleaning policy. Rules are evaluated in order and the first
// rule whose Match returns true decides the value. Apply returns false for an absent value.
type Rule struct {
	Name  string
	Match func(text string) bool
	Apply func(text string) (string, bool)
}

const datePattern = `\d{2}/\d{2}/\d{4}`

var (
	registryPattern     = regexp.MustCompile(`(\d+)\s*-\s*(.+)`)
	documentPattern     = regexp.MustCompile(`DNI\s+(\d+)\s*-\s*(.+)`)
	activityPattern     = regexp.MustCompile(`Principal\s*-\s*(\d+)\s*-\s*(.+)`)
	affiliatedPattern   = regexp.MustCompile(`(?i)(.+?)\s+AFILIADO\s+DESDE\s+(` + datePattern + `)`)
	parenSincePattern   = regexp.MustCompile(`(?i)(.+?)\s*\(desde\s+(` + datePattern + `)\)`)
	unparenSincePattern = regexp.MustCompile(`(?i)(.+?)\s+desde\s+(` + datePattern + `)`)
	exactDatePattern    = regexp.MustCompile(`^` + datePattern + `$`)
)

// absentTokens are the placeholders the portal renders for missing data
var absentTokens = map[string]bool{
	"":        true,
	"-":       true,
	"NONE":    true,
	"NINGUNO": true,
}

var rules = []Rule{
	{
		Name:  "absent",
		Match: func(s string) bool { return absentTokens[s] },
		Apply: func(string) (string, bool) { return "", false },
	},
	{
		Name:  "registry_number",
		Match: func(s string) bool { return strings.Contains(s, "RUC") && strings.Contains(s, "-") },
		Apply: present(formatRegistry),
	},
	{
		Name:  "personal_document",
		Match: func(s string) bool { return strings.Contains(s, "DNI") && strings.Contains(s, "-") },
		Apply: present(formatDocument),
	},
	{
		Name:  "economic_activity",
		Match: func(s string) bool { return strings.HasPrefix(s, "Principal") && strings.Contains(s, "-") },
		Apply: present(formatActivity),
	},
	{
		Name:  "affiliated_since",
		Match: func(s string) bool { return strings.Contains(strings.ToUpper(s), "AFILIADO DESDE") },
		Apply: present(formatAffiliated),
	},
	{
		Name:  "since",
		Match: func(s string) bool { return strings.Contains(strings.ToLower(s), "desde") },
		Apply: present(formatSince),
	},
	{
		Name:  "date",
		Match: exactDatePattern.MatchString,
		Apply: present(func(s string) string { return s }),
	},
	{
		Name:  "default",
		Match: func(string) bool { return true },
		Apply: present(func(s string) string { return s }),
	},
}

func present(f func(string) string) func(string) (string, bool) {
	return func(s string) (string, bool) { return f(s), true }
}

// Rules returns the cleaning policy in evaluation order
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// CleanValue applies the cleaning policy to a raw value. ok is false when the value is absent.
func CleanValue(text string) (value string, ok bool) {
	collapsed := collapseSpaces(text)
	for _, r := range rules {
		if r.Match(collapsed) {
			return r.Apply(collapsed)
		}
	}
	return collapsed, true
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatRegistry: "RUC 10750690713 -  RAMOS FLORES" -> "10750690713 - RAMOS FLORES"
func formatRegistry(s string) string {
	if m := registryPattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s - %s", m[1], strings.TrimSpace(m[2]))
	}
	if parts := strings.SplitN(s, " - ", 2); len(parts) == 2 {
		return fmt.Sprintf("%s - %s", strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return s
}

// formatDocument: "DNI  75069071 - RAMOS FLORES, CARLOS" -> "DNI 75069071 - RAMOS FLORES, CARLOS"
func formatDocument(s string) string {
	if m := documentPattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("DNI %s - %s", m[1], collapseSpaces(m[2]))
	}
	return collapseSpaces(s)
}

// formatActivity: "Principal - 6202 - CONSULTORÍA DE INFORMÁTICA" -> "6202 - CONSULTORÍA DE INFORMÁTICA"
func formatActivity(s string) string {
	if m := activityPattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s - %s", m[1], strings.TrimSpace(m[2]))
	}
	return s
}

// formatAffiliated: "RECIBOS POR HONORARIOS AFILIADO DESDE 03/01/2017" -> "RECIBOS POR HONORARIOS (afiliado desde 03/01/2017)"
func formatAffiliated(s string) string {
	if m := affiliatedPattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s (afiliado desde %s)", strings.TrimSpace(m[1]), m[2])
	}
	return s
}

// formatSince leaves "X (desde dd/mm/yyyy)" alone and rewrites "X desde dd/mm/yyyy".
// The parenthesized date is not re-validated.
func formatSince(s string) string {
	if parenSincePattern.MatchString(s) {
		return s
	}
	if m := unparenSincePattern.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s (desde %s)", strings.TrimSpace(m[1]), m[2])
	}
	return s
}
