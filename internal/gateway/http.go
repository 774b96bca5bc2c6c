package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glintworks/whatskb/internal/config"
	"github.com/glintworks/whatskb/internal/embed"
	"github.com/glintworks/whatskb/internal/store"
)

const httpShutdownTimeout = 5 * time.Second

// AdminStore is the slice of the store the HTTP surface needs.
type AdminStore interface {
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context) (map[string]int64, error)
	InsertTopics(ctx context.Context, topics []store.KBTopic) error
	UpsertGroup(ctx context.Context, g *store.Group) error
}

// SummaryRunner triggers a summary sweep on demand.
type SummaryRunner interface {
	Run(ctx context.Context) (int, error)
}

// Server is the admin and ingestion HTTP surface. It never handles chat
// traffic; messages only arrive over the WhatsApp socket.
type Server struct {
	addr     string
	store    AdminStore
	embedder embed.Embedder
	summary  SummaryRunner
	srv      *http.Server
}

func NewServer(cfg config.GatewayConfig, st AdminStore, embedder embed.Embedder, summarizer SummaryRunner) *Server {
	s := &Server{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		store:    st,
		embedder: embedder,
		summary:  summarizer,
	}
	s.srv = &http.Server{Addr: s.addr, Handler: s.Handler()}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /admin/database/status", s.handleDatabaseStatus)
	mux.HandleFunc("POST /load_company_documentation", s.handleLoadDocumentation)
	mux.HandleFunc("POST /summarize_and_send_to_groups", s.handleSummarize)
	mux.HandleFunc("POST /groups", s.handleUpsertGroup)
	return mux
}

func (s *Server) Start() error {
	log.Printf("[http] listening on %s", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("[http] shutdown warning: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("database unreachable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDatabaseStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TableCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": counts})
}

// Document is one knowledge-base entry accepted by the ingestion endpoint.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

func (s *Server) handleLoadDocumentation(w http.ResponseWriter, r *http.Request) {
	var docs []Document
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode documents: %v", err))
		return
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "no documents provided")
		return
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Content) == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("document %d: title and content are required", i))
			return
		}
		texts[i] = doc.Title + "\n" + doc.Content
	}

	vectors, err := s.embedder.Embed(r.Context(), texts)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("embed documents: %v", err))
		return
	}

	topics := make([]store.KBTopic, len(docs))
	for i, doc := range docs {
		topics[i] = store.KBTopic{
			ID:        uuid.NewString(),
			Subject:   doc.Title,
			Content:   doc.Content,
			Source:    doc.Source,
			Embedding: vectors[i],
		}
	}
	if err := s.store.InsertTopics(r.Context(), topics); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("store topics: %v", err))
		return
	}

	log.Printf("[http] loaded %d documentation topics", len(topics))
	writeJSON(w, http.StatusOK, map[string]int{"loaded": len(topics)})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if s.summary == nil {
		writeError(w, http.StatusServiceUnavailable, "summaries are disabled")
		return
	}
	sent, err := s.summary.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func (s *Server) handleUpsertGroup(w http.ResponseWriter, r *http.Request) {
	var g store.Group
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode group: %v", err))
		return
	}
	if strings.TrimSpace(g.JID) == "" {
		writeError(w, http.StatusBadRequest, "jid is required")
		return
	}
	if err := s.store.UpsertGroup(r.Context(), &g); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jid": g.JID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
