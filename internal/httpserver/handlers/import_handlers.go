package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fleetfuel/internal/importer"
)

const maxImportSize = 10 << 20 // 10 MiB upload cap

// AnalyzeImport parses the uploaded workbook and previews row validation
// against the current store without writing anything. The client holds
// the resulting rows and submits them back to ExecuteImport.
func AnalyzeImport(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			respondError(w, http.StatusBadRequest, "Erreur lecture Excel : "+err.Error())
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "fichier requis")
			return
		}
		defer file.Close()

		parsed, err := importer.ParseWorkbook(file)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, importer.Analyze(db, parsed))
	}
}

// ExecuteImport replays analyzed rows for the given month. All-or-nothing:
// any row failure rolls the whole batch back.
func ExecuteImport(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mois, err1 := strconv.Atoi(r.URL.Query().Get("mois"))
		annee, err2 := strconv.Atoi(r.URL.Query().Get("annee"))
		if err1 != nil || err2 != nil || mois < 1 || mois > 12 {
			respondError(w, http.StatusBadRequest, "mois/annee invalides")
			return
		}
		var body struct {
			Rows []importer.Row `json:"rows"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Erreur parsing body: "+err.Error())
			return
		}
		if len(body.Rows) == 0 {
			respondError(w, http.StatusBadRequest, "Aucune ligne à importer")
			return
		}
		lg.Infow("import execute", "rows", len(body.Rows), "mois", mois, "annee", annee)
		res := importer.Execute(db, body.Rows, mois, annee)
		if !res.Success {
			lg.Warnw("import aborted", "errors", len(res.Errors))
		}
		respondJSON(w, res)
	}
}
