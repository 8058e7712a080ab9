package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DismissToast はトーストを閉じて元のページへ戻る。
// POST /toasts/{id}/dismiss (return)
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.visitor(w, r)
	if !ok {
		return
	}

	sc.Toasts.Remove(chi.URLParam(r, "id"))
	http.Redirect(w, r, returnTarget(r, "/"), http.StatusSeeOther)
}
