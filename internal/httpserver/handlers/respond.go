package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError renders the FastAPI-style error body the frontend expects:
// {"detail": "..."} with the HTTP status carrying the error class.
func respondError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

type successResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      *int   `json:"id,omitempty"`
}

func respondSuccess(w http.ResponseWriter, message string, id ...int) {
	resp := successResp{Success: true, Message: message}
	if len(id) > 0 {
		resp.ID = &id[0]
	}
	respondJSON(w, resp)
}

type pageResp struct {
	Items   interface{} `json:"items"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int64       `json:"total"`
	Pages   int64       `json:"pages"`
}

func respondPage(w http.ResponseWriter, items interface{}, page, perPage int, total int64) {
	var pages int64
	if total > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	respondJSON(w, pageResp{Items: items, Page: page, PerPage: perPage, Total: total, Pages: pages})
}
