package http

import (
	"embed"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"microblog/internal/form"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"datetime": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006 15:04 UTC")
	},
}

// pageRenderer holds one template set per page, each built on the shared layout.
type pageRenderer map[string]*template.Template

func newPageRenderer() pageRenderer {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	r := pageRenderer{}
	for _, page := range pages {
		name := path.Base(page)
		if name == "base.html" || name[0] == '_' {
			continue
		}
		r[name] = template.Must(template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/base.html",
			"templates/_post.html",
			page,
		))
	}
	return r
}

func (r pageRenderer) Instance(name string, data any) render.Render {
	return render.HTML{Template: r[name], Name: "base", Data: data}
}

// render fills in the layout data every page needs and writes the page.
func (h *Handler) render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = form.Errors{}
	}
	data["CurrentUser"] = currentUser(c)
	data["Flashes"] = popFlashes(c)
	c.HTML(status, page, data)
}
