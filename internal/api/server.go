package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"voicesplit/ai"
	"voicesplit/internal/config"
	"voicesplit/internal/service"
	"voicesplit/models"
	"voicesplit/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client канал до подключённого клиента (WebSocket или gRPC stream)
type client interface {
	Send(msg Message) error
	Close() error
}

// wsClient сериализует запись: gorilla/websocket не допускает конкурентных писателей
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

type Server struct {
	Config             *config.Config
	Store              *store.Store
	ModelMgr           *models.Manager
	DiarizationService *service.DiarizationService

	clients map[client]bool
	mu      sync.Mutex

	grpcServer *grpc.Server
}

func NewServer(
	cfg *config.Config,
	st *store.Store,
	modMgr *models.Manager,
	svc *service.DiarizationService,
) *Server {
	s := &Server{
		Config:             cfg,
		Store:              st,
		ModelMgr:           modMgr,
		DiarizationService: svc,
		clients:            make(map[client]bool),
	}
	s.setupCallbacks()
	return s
}

// Handler возвращает HTTP маршруты: /ws и REST /api/results/
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/results/", s.handleResultsAPI)
	return mux
}

// Start запускает HTTP и gRPC серверы и блокирует до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    ":" + s.Config.Server.Port,
		Handler: s.Handler(),
	}

	go func() {
		if err := s.startGRPCServer(); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", s.Config.Server.Port).Msg("backend listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.stopGRPCServer()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.stopGRPCServer()
	s.closeClients()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func (s *Server) setupCallbacks() {
	if s.ModelMgr != nil {
		s.ModelMgr.SetProgressCallback(func(modelID string, progress float64, status models.ModelStatus, err error) {
			errStr := ""
			if err != nil {
				errStr = err.Error()
			}
			s.broadcast(Message{
				Type:     MsgModelProgress,
				ModelID:  modelID,
				Progress: progress,
				Data:     string(status),
				Error:    errStr,
			})
		})
	}

	if s.DiarizationService != nil {
		s.DiarizationService.OnJobDone = func(rec *store.Record) {
			msgType := MsgJobCompleted
			if rec.Status == store.StatusFailed {
				msgType = MsgJobFailed
			}
			s.broadcast(Message{
				Type:   msgType,
				JobID:  rec.ID,
				Result: rec,
				Error:  rec.Error,
			})
		}
	}
}

func (s *Server) addClient(c client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) removeClient(c client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
		delete(s.clients, c)
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	clients := make([]client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			log.Warn().Err(err).Msg("broadcast write failed")
			c.Close()
			s.removeClient(c)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn}
	s.addClient(c)
	defer func() {
		s.removeClient(c)
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read")
			}
			break
		}
		s.processMessage(c, msg)
	}
}

func sendError(c client, format string, args ...any) {
	c.Send(Message{Type: MsgError, Data: fmt.Sprintf(format, args...)})
}

// processMessage общий обработчик для WebSocket и gRPC клиентов
func (s *Server) processMessage(c client, msg Message) {
	switch msg.Type {
	case MsgDiarize:
		if s.DiarizationService == nil {
			sendError(c, "diarization service not available")
			return
		}
		id, err := s.DiarizationService.Submit(service.DiarizeRequest{
			AudioPath:  msg.AudioPath,
			Transcript: msg.Transcript,
		})
		if err != nil {
			sendError(c, "%v", err)
			return
		}
		c.Send(Message{Type: MsgJobQueued, JobID: id, AudioPath: msg.AudioPath})

	case MsgAlign:
		if len(msg.Transcript) == 0 {
			sendError(c, "transcript is required")
			return
		}
		var labeled []ai.LabeledSegment
		if msg.Alternate {
			labeled = ai.AlternateSpeakersOnPause(msg.Transcript)
		} else {
			labeled = ai.AlignTranscript(msg.Transcript, msg.SpeakerSegments)
		}
		c.Send(Message{
			Type:        MsgAligned,
			Labeled:     labeled,
			Text:        ai.FormatLabeledTranscript(labeled),
			Percentages: ai.SpeakerTimePercentages(labeled),
		})

	case MsgFormat:
		text := ai.FormatLabeledTranscript(msg.Labeled)
		if len(msg.Labeled) == 0 && len(msg.SpeakerSegments) > 0 {
			text = ai.FormatSpeakerTimeline(msg.SpeakerSegments)
		}
		c.Send(Message{
			Type:        MsgFormatted,
			Text:        text,
			Percentages: ai.SpeakerTimePercentages(msg.Labeled),
		})

	case MsgGetResults:
		records := s.Store.List()
		infos := make([]ResultInfo, len(records))
		for i, rec := range records {
			infos[i] = newResultInfo(rec)
		}
		c.Send(Message{Type: MsgResultsList, Results: infos})

	case MsgGetResult:
		rec, err := s.Store.Get(msg.JobID)
		if err != nil {
			sendError(c, "%v", err)
			return
		}
		c.Send(Message{Type: MsgResultDetails, JobID: rec.ID, Result: rec})

	case MsgDeleteResult:
		if err := s.Store.Delete(msg.JobID); err != nil {
			sendError(c, "%v", err)
			return
		}
		c.Send(Message{Type: MsgResultDeleted, JobID: msg.JobID})

	case MsgGetModels:
		if s.ModelMgr == nil {
			sendError(c, "model manager not available")
			return
		}
		c.Send(Message{Type: MsgModelsList, Models: s.ModelMgr.GetAllModelsState()})

	case MsgDownloadModel:
		if s.ModelMgr == nil {
			sendError(c, "model manager not available")
			return
		}
		if msg.ModelID == "" {
			sendError(c, "modelId is required")
			return
		}
		if err := s.ModelMgr.DownloadModel(msg.ModelID); err != nil {
			sendError(c, "%v", err)
			return
		}
		c.Send(Message{Type: MsgDownloadStarted, ModelID: msg.ModelID})

	default:
		sendError(c, "unknown message type: %s", msg.Type)
	}
}

func (s *Server) handleResultsAPI(w http.ResponseWriter, r *http.Request) {
	// CORS headers for dev mode
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/results/"), "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		records := s.Store.List()
		infos := make([]ResultInfo, len(records))
		for i, rec := range records {
			infos[i] = newResultInfo(rec)
		}
		writeJSON(w, infos)
		return
	}

	parts := strings.Split(path, "/")
	rec, err := s.Store.Get(parts[0])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, rec)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.Store.Delete(rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 3 && parts[1] == "speakers" && r.Method == http.MethodGet:
		label := strings.TrimSuffix(parts[2], ".mp3")
		samplePath, ok := rec.SpeakerSamples[label]
		if !ok {
			http.NotFound(w, r)
			return
		}
		// Отдаём только файлы из директории задачи
		if filepath.Dir(samplePath) != filepath.Clean(s.Store.SamplesDir(rec.ID)) {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(samplePath); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeFile(w, r, samplePath)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
