package controller

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"polyjudge/internal/compiler/language"
	"polyjudge/pkg/utils/response"
)

// LanguageCatalog is the read side of the language registry.
type LanguageCatalog interface {
	List() []language.Descriptor
	Lookup(ctx context.Context, id string) (language.Descriptor, error)
}

// LanguageView is the public shape of a language descriptor.
type LanguageView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	EntrySource  string `json:"entry_source"`
	ExecCmd      string `json:"exec_cmd"`
	CompileExec  string `json:"compile_exec"`
	CompileArgs  string `json:"compile_args"`
	AddMemLimit  uint64 `json:"add_mem_limit"`
	AddTimeLimit uint64 `json:"add_time_limit"`
}

// LanguageController serves the language catalog.
type LanguageController struct {
	langs LanguageCatalog
}

// NewLanguageController creates a new controller.
func NewLanguageController(langs LanguageCatalog) *LanguageController {
	return &LanguageController{langs: langs}
}

// List returns every loaded language.
func (h *LanguageController) List(c *gin.Context) {
	descs := h.langs.List()
	views := make([]LanguageView, 0, len(descs))
	for _, d := range descs {
		views = append(views, toView(d))
	}
	response.Success(c, views)
}

// Get returns one language by id.
func (h *LanguageController) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.BadRequest(c, "Invalid language id")
		return
	}
	d, err := h.langs.Lookup(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toView(d))
}

func toView(d language.Descriptor) LanguageView {
	return LanguageView{
		ID:           d.ID.String(),
		Name:         d.Name,
		Version:      d.Version,
		EntrySource:  d.EntrySource,
		ExecCmd:      d.ExecCmd,
		CompileExec:  d.CompileExec,
		CompileArgs:  d.CompileArgs,
		AddMemLimit:  d.AddMemLimit,
		AddTimeLimit: d.AddTimeLimit,
	}
}
