package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"CoverPool/internal/ingestion"
	"CoverPool/internal/observability"
	"CoverPool/internal/persistence"
	"CoverPool/internal/projection"
	"CoverPool/internal/query"
)

// Server hosts the gRPC endpoint (health + reflection) and the HTTP/JSON
// API. The JSON routes are registered on a grpc-gateway ServeMux so proto
// service handlers can be attached later without changing the surface.
type Server struct {
	grpcServer    *grpc.Server
	healthServer  *health.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	deps          *ServerDeps
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	IngestService *ingestion.GRPCIngestService
	SnapshotMgr   *persistence.SnapshotManager
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

// NewServer creates the gRPC and HTTP servers.
func NewServer(grpcAddr, httpAddr string, deps *ServerDeps) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:    grpcServer,
		healthServer:  healthServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		deps:          deps,
		healthChecker: deps.HealthChecker,
		log:           observability.NewLogger("server"),
	}
}

// SetServing flips the gRPC health status once recovery completes.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/members/{member}/balance", s.handleMemberBalance},
		{"GET", "/v1/members/{member}/journals", s.handleJournalHistory},
		{"GET", "/v1/pools/{pool_id}/overview", s.handlePoolOverview},
		{"GET", "/v1/pools/{pool_id}/deposits", s.handleDepositHistory},
		{"GET", "/v1/pools/{pool_id}/positions/{position_id}/withdrawals", s.handleWithdrawalHistory},
		{"GET", "/v1/pools/{pool_id}/allocations", s.handleAllocationHistory},
		{"GET", "/v1/admin/integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/admin/event-log", s.handleEventLogInfo},
		{"POST", "/v1/admin/rebuild-projections", s.handleRebuildProjections},
		{"POST", "/v1/admin/pools", s.handleCreatePool},
		{"POST", "/v1/admin/products", s.handleUpdateProduct},
		{"POST", "/v1/admin/governance-locks", s.handleGovernanceLock},
		{"POST", "/v1/admin/deallocations", s.handleDeallocation},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- Query handlers ---

func (s *Server) handleMemberBalance(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	member, err := uuid.Parse(pathParams["member"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	resp, err := s.deps.QueryService.GetMemberBalance(r.Context(), member)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoolOverview(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	poolID, ok := parsePoolID(w, pathParams)
	if !ok {
		return
	}

	resp, err := s.deps.QueryService.GetPoolOverview(r.Context(), poolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDepositHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	poolID, ok := parsePoolID(w, pathParams)
	if !ok {
		return
	}

	var positionID *int64
	if v := r.URL.Query().Get("position_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid position_id")
			return
		}
		positionID = &id
	}

	limit, afterSeq := pagination(r)
	resp, err := s.deps.QueryService.GetDepositHistory(r.Context(), poolID, positionID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deposits": resp})
}

func (s *Server) handleWithdrawalHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	poolID, ok := parsePoolID(w, pathParams)
	if !ok {
		return
	}
	positionID, err := strconv.ParseInt(pathParams["position_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	limit, afterSeq := pagination(r)
	resp, err := s.deps.QueryService.GetWithdrawalHistory(r.Context(), poolID, positionID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": resp})
}

func (s *Server) handleAllocationHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	poolID, ok := parsePoolID(w, pathParams)
	if !ok {
		return
	}

	var productID *uint32
	if v := r.URL.Query().Get("product_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		p := uint32(id)
		productID = &p
	}

	limit, afterSeq := pagination(r)
	resp, err := s.deps.QueryService.GetAllocationHistory(r.Context(), poolID, productID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"allocations": resp})
}

func (s *Server) handleJournalHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	member, err := uuid.Parse(pathParams["member"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	limit, afterSeq := pagination(r)
	resp, err := s.deps.QueryService.GetJournalHistory(r.Context(), member, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": resp})
}

// --- Admin handlers ---

func (s *Server) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEventLogInfo(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	latestSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sequence": latestSeq,
		"uptime":        time.Since(s.deps.StartTime).String(),
	})
}

func (s *Server) handleRebuildProjections(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rebuilt": true})
}

type createPoolRequest struct {
	Manager      string `json:"manager"`
	PoolID       uint32 `json:"pool_id"`
	IsPrivate    bool   `json:"is_private"`
	InitialFee   int64  `json:"initial_fee"`
	MaxFee       int64  `json:"max_fee"`
	MetadataHash string `json:"metadata_hash"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	manager, err := uuid.Parse(req.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manager id")
		return
	}

	err = s.deps.IngestService.InjectPoolCreated(r.Context(), manager, req.PoolID,
		req.IsPrivate, req.InitialFee, req.MaxFee, req.MetadataHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

type updateProductRequest struct {
	Caller         string `json:"caller"`
	PoolID         uint32 `json:"pool_id"`
	ProductID      uint32 `json:"product_id"`
	TargetWeight   int64  `json:"target_weight"`
	TargetPrice    int64  `json:"target_price"`
	SourceSequence int64  `json:"source_sequence"`
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := uuid.Parse(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller id")
		return
	}

	err = s.deps.IngestService.InjectProductUpdate(r.Context(), caller, req.PoolID,
		req.ProductID, req.TargetWeight, req.TargetPrice, req.SourceSequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

type governanceLockRequest struct {
	PoolID         uint32 `json:"pool_id"`
	PositionID     int64  `json:"position_id"`
	LockedUntil    int64  `json:"locked_until"`
	SourceSequence int64  `json:"source_sequence"`
}

func (s *Server) handleGovernanceLock(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req governanceLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.deps.IngestService.InjectGovernanceLock(r.Context(), req.PoolID,
		req.PositionID, req.LockedUntil, req.SourceSequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

type deallocationRequest struct {
	CoverID           string `json:"cover_id"`
	PoolID            uint32 `json:"pool_id"`
	ProductID         uint32 `json:"product_id"`
	Amount            int64  `json:"amount"`
	CapacityReleaseAt int64  `json:"capacity_release_at"`
	SourceSequence    int64  `json:"source_sequence"`
}

func (s *Server) handleDeallocation(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req deallocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	coverID, err := uuid.Parse(req.CoverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cover id")
		return
	}

	err = s.deps.IngestService.InjectDeallocation(r.Context(), coverID, req.PoolID,
		req.ProductID, req.Amount, req.CapacityReleaseAt, req.SourceSequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

// --- helpers ---

func parsePoolID(w http.ResponseWriter, pathParams map[string]string) (uint32, bool) {
	id, err := strconv.ParseUint(pathParams["pool_id"], 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return 0, false
	}
	return uint32(id), true
}

func pagination(r *http.Request) (limit int, afterSequence *int64) {
	limit = 50
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("from_sequence"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			afterSequence = &n
		}
	}
	return limit, afterSequence
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
