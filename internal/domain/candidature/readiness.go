package candidature

import (
	"strings"

	"admissions/internal/common"
	"admissions/internal/domain/document"
)

const MinStatementLength = 10

type Readiness struct {
	DocumentTypes   []document.Type
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	AcademicRecords int
	Statement       string
}

// MissingDocuments returns the required types absent from present, in the
// order of document.RequiredTypes.
func MissingDocuments(present []document.Type) []document.Type {
	have := make(map[document.Type]bool, len(present))
	for _, t := range present {
		have[t] = true
	}
	var missing []document.Type
	for _, required := range document.RequiredTypes {
		if !have[required] {
			missing = append(missing, required)
		}
	}
	return missing
}

// CheckReadiness evaluates every submission requirement and reports all
// failures at once.
func CheckReadiness(r Readiness) error {
	var problems []string
	fields := map[string]string{}

	if missing := MissingDocuments(r.DocumentTypes); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = t.Label()
		}
		list := strings.Join(names, ", ")
		problems = append(problems, "Documents requis manquants: "+list)
		fields["documents"] = list
	}

	var identity []string
	if strings.TrimSpace(r.FirstName) == "" {
		identity = append(identity, "prenom")
	}
	if strings.TrimSpace(r.LastName) == "" {
		identity = append(identity, "nom")
	}
	if strings.TrimSpace(r.Email) == "" {
		identity = append(identity, "email")
	}
	if strings.TrimSpace(r.Phone) == "" {
		identity = append(identity, "telephone")
	}
	if len(identity) > 0 {
		list := strings.Join(identity, ", ")
		problems = append(problems, "Informations personnelles incomplètes: "+list)
		fields["informationsPersonnelles"] = list
	}

	if r.AcademicRecords < 1 {
		problems = append(problems, "Dossier académique requis")
		fields["dossierAcademique"] = "au moins un dossier académique est requis"
	}

	if len([]rune(strings.TrimSpace(r.Statement))) < MinStatementLength {
		problems = append(problems, "Lettre de motivation requise (minimum 10 caractères)")
		fields["statement"] = "minimum 10 caractères"
	}

	if len(problems) == 0 {
		return nil
	}
	return common.NewValidationError("candidature incomplete: "+strings.Join(problems, "; "), fields)
}
