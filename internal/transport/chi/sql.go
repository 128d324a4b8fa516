package chi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
)

// askSQL runs the question against the named database.
func (s *Server) askSQL(w http.ResponseWriter, r *http.Request) (SQLRequest, answer.SQLArtifact, bool) {
	if s.svc.Catalog == nil {
		unavailable(w, "sql")
		return SQLRequest{}, answer.SQLArtifact{}, false
	}
	var req SQLRequest
	if !decodeJSON(w, r, &req) {
		return SQLRequest{}, answer.SQLArtifact{}, false
	}
	if req.Question = strings.TrimSpace(req.Question); req.Question == "" {
		req.Question = strings.TrimSpace(req.Query)
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "question is required")
		return SQLRequest{}, answer.SQLArtifact{}, false
	}
	if req.DBName = strings.TrimSpace(req.DBName); req.DBName == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "db_name is required")
		return SQLRequest{}, answer.SQLArtifact{}, false
	}

	db, err := s.svc.Catalog.Lookup(req.DBName)
	if err != nil {
		s.handleDomainError(w, r, err)
		return SQLRequest{}, answer.SQLArtifact{}, false
	}
	res, err := db.Ask(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, r, err)
		return SQLRequest{}, answer.SQLArtifact{}, false
	}
	return req, db.Artifact(res), true
}

// AskSQL handles POST /sql/ask.
func (s *Server) AskSQL(w http.ResponseWriter, r *http.Request) {
	req, artifact, ok := s.askSQL(w, r)
	if !ok {
		return
	}

	text := ""
	if s.svc.Synth != nil {
		ans, err := s.svc.Synth.FromTable(r.Context(), req.Question, artifact)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		text = ans.Text
	}

	columns := artifact.Table.Columns
	if columns == nil {
		columns = []string{}
	}
	writeJSON(w, http.StatusOK, SQLAskResponse{
		Answer:   text,
		Database: artifact.Database,
		SQL:      artifact.SQL,
		Columns:  columns,
		Rows:     nonNilRows(artifact.Table.Rows),
	})
}

// ExportSQL handles POST /sql/export.
func (s *Server) ExportSQL(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		unavailable(w, "export")
		return
	}
	_, artifact, ok := s.askSQL(w, r)
	if !ok {
		return
	}
	if len(artifact.Table.Columns) == 0 {
		s.handleDomainError(w, r, fmt.Errorf("%w: query returned no columns", domain.ErrNoTabularResult))
		return
	}

	path, err := s.svc.Exporter.Write(artifact.Table)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SQLExportResponse{FilePath: path, SQL: artifact.SQL, Rows: len(artifact.Table.Rows)})
}
