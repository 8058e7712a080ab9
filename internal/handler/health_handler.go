package handler

import (
	"encoding/json"
	"net/http"
)

// Health は死活監視用のエンドポイント。訪問者Contextは生成しない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
