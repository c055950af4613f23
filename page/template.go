package page

import "strings"

// Template identifiers accepted from the generation form.
const (
	TemplateBirthday        = "birthday.html"
	TemplateAnniversary     = "anniversary.html"
	TemplateCongratulations = "congratulations.html"
	TemplateCustom          = "custom.html"

	DefaultTemplate = TemplateBirthday
)

// GenericTitle is used when neither the user nor the template supplies a title.
const GenericTitle = "✨ Celebrate"

// Templates lists the recognized templates in display order.
func Templates() []string {
	return []string{TemplateBirthday, TemplateAnniversary, TemplateCongratulations, TemplateCustom}
}

// ResolveTemplate maps a form selector to a known template, falling back to
// DefaultTemplate for empty or unrecognized values.
func ResolveTemplate(selector string) string {
	selector = strings.TrimSpace(selector)
	for _, t := range Templates() {
		if selector == t {
			return t
		}
	}
	return DefaultTemplate
}

// DefaultTitle returns the title used when the user left the title blank.
// It keys on the raw selector, so unknown selectors get GenericTitle even
// though they render with DefaultTemplate.
func DefaultTitle(selector string) string {
	switch strings.TrimSpace(selector) {
	case TemplateBirthday:
		return "🎉 Happy Birthday"
	case TemplateAnniversary:
		return "💖 Happy Anniversary"
	case TemplateCongratulations:
		return "🎊 Congratulations"
	default:
		return GenericTitle
	}
}
