package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
)

// IndexSource handles POST /indexing/{source}. The body is the connector settings
// object; ?reindex=true replaces the stored chunks of the source.
func (s *Server) IndexSource(w http.ResponseWriter, r *http.Request) {
	if s.svc.Indexer == nil {
		unavailable(w, "indexing")
		return
	}

	var name string
	err := runtime.BindStyledParameterWithLocation("simple", false, "source",
		runtime.ParamLocationPath, gochi.URLParam(r, "source"), &name)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter source: "+err.Error())
		return
	}
	src, err := source.Parse(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	var reindex bool
	if err := runtime.BindQueryParameter("form", true, false, "reindex", r.URL.Query(), &reindex); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter reindex: "+err.Error())
		return
	}

	cfg := connectors.Config{}
	if !decodeJSON(w, r, &cfg) {
		return
	}

	index := s.svc.Indexer.Index
	if reindex {
		index = s.svc.Indexer.Reindex
	}
	report, err := index(r.Context(), src, cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RegisterSQL handles POST /indexing/sql/register.
func (s *Server) RegisterSQL(w http.ResponseWriter, r *http.Request) {
	if s.svc.Registry == nil {
		unavailable(w, "sql")
		return
	}
	var req RegisterSQLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reg := sqlreg.Registration{
		Name:          req.Name,
		DSN:           req.DSN,
		IncludeTables: req.IncludeTables,
		Schema:        req.Schema,
	}.Normalize()

	replaced, err := s.svc.Registry.Register(r.Context(), reg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterSQLResponse{Name: reg.Name, Replaced: replaced})
}
