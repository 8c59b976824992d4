package alarm

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/index.html
var templatesFS embed.FS

// pageTemplate is the name of the control page template.
const pageTemplate = "index.html"

// pageData feeds the control page.
type pageData struct {
	LoopDuration string
	StopDelay    string
	AuthEnabled  bool
}

// Page renders the control surface.
type Page struct {
	// data is rendered on every request.
	data pageData
}

// NewPage returns a page describing the configured timings.
func NewPage(service Service, authEnabled bool) *Page {
	return &Page{
		data: pageData{
			LoopDuration: service.LoopDuration().String(),
			StopDelay:    service.StopDelay().String(),
			AuthEnabled:  authEnabled,
		},
	}
}

// loadTemplates parses the embedded control page.
func loadTemplates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/"+pageTemplate))
}

// Index serves the control page.
func (p *Page) Index(c *gin.Context) {
	c.HTML(http.StatusOK, pageTemplate, p.data)
}
