package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/toast"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// PageData はレイアウトに渡す共通データ。ページ固有のデータはContentに入れる。
type PageData struct {
	Title     string
	User      *model.User
	CSRFToken string
	Toasts    []toast.Toast
	CartCount int
	// Path はトーストを閉じた後の戻り先。
	Path    string
	Content any
}

// IsAdmin はログインユーザーが管理者かを返す。
func (d PageData) IsAdmin() bool {
	return d.User != nil && d.User.Role == model.RoleAdmin
}

// IsSeller はログインユーザーが出品者画面を使えるかを返す。
func (d PageData) IsSeller() bool {
	return d.User != nil && (d.User.Role == model.RoleSeller || d.User.Role == model.RoleAdmin)
}

var templateFuncs = template.FuncMap{
	"price": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
	"roles": func() []model.Role {
		return []model.Role{model.RoleUser, model.RoleSeller, model.RoleAdmin}
	},
	"categories": func() []string {
		return model.Categories
	},
}

// Renderer はページごとに「レイアウト＋ページ」を解析済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		base := path.Base(file)
		tmpl, err := template.New(base).Funcs(templateFuncs).ParseFS(templateFS, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", base, err)
		}
		pages[strings.TrimSuffix(base, ".html")] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render は指定ページをレイアウト付きで書き込む。
func (rd *Renderer) Render(w io.Writer, page string, data PageData) error {
	tmpl, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// render はページを描画する。描画に失敗した場合は途中まで書かずに500を返す。
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	data := PageData{
		Title:     title,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Path:      r.URL.RequestURI(),
		Content:   content,
	}
	if sc, err := middleware.VisitorFromContext(r.Context()); err == nil {
		data.User = sc.Session.User()
		data.Toasts = sc.Toasts.List()
		for _, item := range sc.Cart.Snapshot().Items {
			data.CartCount += item.Quantity
		}
	}

	var buf bytes.Buffer
	if err := h.pages.Render(&buf, page, data); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError はエラーページを描画する。
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, uiErr *model.UIError) {
	h.render(w, r, status, "error", "Error", uiErr)
}

// NotFound は未定義のパスに対する404ページを描画する。
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, model.NewNotFoundError("Page"))
}
