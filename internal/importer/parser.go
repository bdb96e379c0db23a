// Package importer implements the two-phase spreadsheet import: analyze
// parses and validates an uploaded workbook against current store state
// without writing anything, execute replays the validated rows inside a
// single all-or-nothing transaction.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Column aliases accepted in the header row. The files come from several
// directions and never agree on spelling.
var columnAliases = map[string][]string{
	"POLICE":    {"N° POLICE", "POLICE", "N POLICE", "Nº POLICE"},
	"CIVIL":     {"N° CIVIL", "CIVIL", "N CIVIL", "Nº CIVIL", "NCIVIL"},
	"MARQUE":    {"MARQUE"},
	"CARBURANT": {"CARBURANT"},
	"KM":        {"KM", "KILOMETRAGE"},
	"SERVICE":   {"SERVICE"},
	"NOM":       {"NOM ET PRENOM DU BENEFICIAIRE", "NOM", "BENEFICIAIRE", "NOM ET PRENOM"},
	"QTE":       {"QTE", "QUANTITE", "QUOTA"},
	"FONCTION":  {"QUALITE", "FONCTION"},
}

var requiredColumns = []string{"POLICE", "SERVICE", "NOM", "QTE", "FONCTION"}

// RawRow is one usable spreadsheet line before any store lookup.
type RawRow struct {
	RowNumber int
	Police    string
	Civil     string
	Marque    string
	Carburant string
	Km        int
	Service   string
	Nom       string
	Qte       decimal.Decimal
	Fonction  string
}

// NormalizeCarburant maps the free-text fuel column onto the two fuel
// classes, or "" when unrecognised.
func NormalizeCarburant(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "gazoil", "gasoil", "diesel", "gazole":
		return "gazoil"
	case "essence", "super":
		return "essence"
	}
	return ""
}

// ParseWorkbook reads the first sheet of an xlsx stream. Rows missing any
// required value are silently skipped, matching the legacy behaviour.
func ParseWorkbook(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("lecture Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("classeur vide")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("lecture Excel: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("classeur vide")
	}

	headerIdx := map[string]int{}
	for i, h := range rows[0] {
		if h = strings.ToUpper(strings.TrimSpace(h)); h != "" {
			headerIdx[h] = i
		}
	}
	colIdx := map[string]int{}
	for key, aliases := range columnAliases {
		for _, name := range aliases {
			if i, ok := headerIdx[name]; ok {
				colIdx[key] = i
				break
			}
		}
	}
	var missing []string
	for _, key := range requiredColumns {
		if _, ok := colIdx[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("colonnes manquantes dans l'Excel : %s", strings.Join(missing, ", "))
	}

	var out []RawRow
	for i, cells := range rows[1:] {
		rowNumber := i + 2
		cell := func(key string) string {
			idx, ok := colIdx[key]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		police := cell("POLICE")
		if police == "" {
			continue
		}
		qte, err := decimal.NewFromString(cell("QTE"))
		if err != nil || !qte.IsPositive() {
			continue
		}
		km := 0
		if s := cell("KM"); s != "" {
			if n, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
				km = n
			}
		}
		row := RawRow{
			RowNumber: rowNumber,
			Police:    police,
			Civil:     cell("CIVIL"),
			Marque:    cell("MARQUE"),
			Carburant: NormalizeCarburant(cell("CARBURANT")),
			Km:        km,
			Service:   cell("SERVICE"),
			Nom:       cell("NOM"),
			Qte:       qte,
			Fonction:  cell("FONCTION"),
		}
		if row.Service == "" || row.Nom == "" || row.Fonction == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
