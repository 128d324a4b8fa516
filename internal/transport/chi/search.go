package chi

import (
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/scope"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/logger"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
)

// routerRequest applies request defaults: scope def, hybrid on, top_k
// DefaultTopK clamped to MaxTopK.
func (s *Server) routerRequest(req SearchRequest, def scope.Scope) (router.Request, error) {
	sc, err := scope.Parse(req.Scope, def)
	if err != nil {
		return router.Request{}, err
	}
	sources, err := source.ParseList(req.Sources)
	if err != nil {
		return router.Request{}, err
	}
	hybrid := true
	if req.UseHybrid != nil {
		hybrid = *req.UseHybrid
	}
	topK := req.TopK
	if topK <= 0 {
		topK = router.DefaultTopK
	}
	if s.opts.MaxTopK > 0 && topK > s.opts.MaxTopK {
		topK = s.opts.MaxTopK
	}
	return router.Request{
		Scope:   sc,
		Sources: sources,
		Hybrid:  hybrid,
		DBName:  strings.TrimSpace(req.DBName),
		TopK:    topK,
	}, nil
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "query is required")
		return
	}
	rreq, err := s.routerRequest(req, scope.Vector)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	route, err := s.svc.Router.Route(r.Context(), rreq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	ans, err := route.Engine.Query(r.Context(), query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if req.SessionID != "" && s.svc.Memory != nil {
		s.svc.Memory.Append(req.SessionID, domain.RoleUser, query)
		s.svc.Memory.Append(req.SessionID, domain.RoleAssistant, ans.Text)
	}

	resp := SearchResponse{
		Answer:    ans.Text,
		Citations: ans.Citations,
		SQL:       ans.SQL,
		Origin:    string(ans.Origin),
		Scope:     string(route.Effective),
	}
	if resp.Citations == nil {
		resp.Citations = []answer.Citation{}
	}
	if route.Fallback {
		resp.Fallback = &Fallback{From: string(route.Requested), To: string(route.Effective), Reason: route.Reason}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Chat handles POST /chat. With stream set it answers like GET /chat/stream.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.svc.Agent == nil {
		unavailable(w, "chat")
		return
	}
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	areq, ok := s.agentRequest(w, r, req.SearchRequest, scope.Vector)
	if !ok {
		return
	}
	if req.Stream {
		s.stream(w, r, areq)
		return
	}

	reply, err := s.svc.Agent.Chat(r.Context(), areq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: reply.SessionID,
		Answer:    reply.Text,
		Citations: reply.Citations,
		Artifacts: artifactsToDTO(reply.Artifacts),
	})
}

// ChatStream handles GET /chat/stream.
func (s *Server) ChatStream(w http.ResponseWriter, r *http.Request) {
	if s.svc.Agent == nil {
		unavailable(w, "chat")
		return
	}

	q := r.URL.Query()
	req := SearchRequest{SessionID: agent.DefaultSession}
	binds := []struct {
		name     string
		explode  bool
		required bool
		dest     any
	}{
		{"query", true, true, &req.Query},
		{"session_id", true, false, &req.SessionID},
		{"scope", true, false, &req.Scope},
		{"sources", false, false, &req.Sources},
		{"use_hybrid", true, false, &req.UseHybrid},
		{"db_name", true, false, &req.DBName},
		{"top_k", true, false, &req.TopK},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", b.explode, b.required, b.name, q, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid parameter "+b.name+": "+err.Error())
			return
		}
	}

	areq, ok := s.agentRequest(w, r, req, scope.All)
	if !ok {
		return
	}
	s.stream(w, r, areq)
}

func (s *Server) agentRequest(w http.ResponseWriter, r *http.Request, req SearchRequest, def scope.Scope) (agent.Request, bool) {
	msg := strings.TrimSpace(req.Query)
	if msg == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "query is required")
		return agent.Request{}, false
	}
	rreq, err := s.routerRequest(req, def)
	if err != nil {
		s.handleDomainError(w, r, err)
		return agent.Request{}, false
	}
	return agent.Request{SessionID: req.SessionID, Message: msg, Search: rreq}, true
}

// stream writes agent tokens as SSE data events. Failures become an
// "error" event; every stream ends with the end marker. A client disconnect
// cancels the request context, which stops generation.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, req agent.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx, s.logger)
	sse := newSSEWriter(w)

	for ev, err := range s.svc.Agent.Stream(ctx, req) {
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("Stream canceled by client")
				return
			}
			_, resp, ok := mapError(err)
			if ok {
				log.Warn("Stream failed", zap.Error(err))
			} else {
				log.Error("Stream failed", zap.Error(err))
			}
			if sse.Event("error", resp.Message) != nil {
				return
			}
			break
		}
		if ev.Kind != agent.EventToken {
			continue
		}
		if err := sse.Data(ev.Token); err != nil {
			log.Debug("Stream write failed", zap.Error(err))
			return
		}
	}
	_ = sse.End()
}
