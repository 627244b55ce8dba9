package followup

import (
	"fmt"
	"strings"

	"mailtriage/internal/clients"
	"mailtriage/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var fieldLabels = map[clients.Field]string{
	clients.FieldFullName: "nome e cognome",
	clients.FieldPhone:    "numero di telefono",
	clients.FieldCity:     "città di residenza",
}

// DescribeMissing renders the missing fields as a sentence fragment,
// e.g. "nome e cognome, numero di telefono e città di residenza".
func DescribeMissing(fields []clients.Field) string {
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, fieldLabels[f])
	}

	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " e " + labels[len(labels)-1]
	}
}

// greeting addresses the client by name when one is known
func greeting(c *models.Client) string {
	if c.Name == nil || strings.TrimSpace(*c.Name) == "" {
		return "Gentile cliente,"
	}
	name := cases.Title(language.Italian).String(strings.ToLower(strings.TrimSpace(*c.Name)))
	return fmt.Sprintf("Gentile %s,", name)
}

// composeBody writes the markdown body of an information request
func composeBody(c *models.Client, missing []clients.Field, attempt int, officeName string) string {
	var b strings.Builder

	b.WriteString(greeting(c))
	b.WriteString("\n\n")
	if attempt > 1 {
		b.WriteString("le scriviamo di nuovo in merito alla sua richiesta. ")
	} else {
		b.WriteString("grazie per averci contattato. ")
	}
	b.WriteString("Per inoltrare la sua richiesta al professionista di riferimento abbiamo bisogno di alcune informazioni: ")
	b.WriteString(DescribeMissing(missing))
	b.WriteString(".\n\n")
	for _, f := range missing {
		fmt.Fprintf(&b, "- %s\n", capitalize(fieldLabels[f]))
	}
	b.WriteString("\nPuò rispondere direttamente a questa email.\n\nCordiali saluti,\n\n")
	b.WriteString(officeName)
	b.WriteString("\n")

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
