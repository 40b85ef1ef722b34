package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// CheckFunc проверка зависимости (Redis, архив, брокер)
type CheckFunc func(ctx context.Context) error

// HealthServer реализует grpc_health_v1.HealthServer и /healthz.
// Статус сервиса определяется последним результатом его проверки.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	logger *zap.Logger

	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	checks   map[string]CheckFunc
	errs     map[string]string
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		logger:   logger,
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		checks:   make(map[string]CheckFunc),
		errs:     make(map[string]string),
	}
}

// AddCheck регистрирует проверку; до первого прогона сервис считается неизвестным
func (h *HealthServer) AddCheck(service string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[service] = check
	h.services[service] = grpc_health_v1.HealthCheckResponse_UNKNOWN
}

// RunChecks выполняет все проверки один раз
func (h *HealthServer) RunChecks(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := fn(checkCtx)
		cancel()

		h.mu.Lock()
		prev := h.services[name]
		if err != nil {
			h.services[name] = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			h.errs[name] = err.Error()
		} else {
			h.services[name] = grpc_health_v1.HealthCheckResponse_SERVING
			delete(h.errs, name)
		}
		cur := h.services[name]
		h.mu.Unlock()

		if prev != cur {
			h.logger.Info("health status changed", zap.String("service", name), zap.String("status", cur.String()), zap.Error(err))
		}
	}
}

// Run периодически выполняет проверки до отмены контекста
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.RunChecks(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.RunChecks(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	service := req.GetService()

	if service == "" {
		return &grpc_health_v1.HealthCheckResponse{
			Status: h.overallLocked(),
		}, nil
	}

	servingStatus, exists := h.services[service]
	if !exists {
		return nil, status.Error(codes.NotFound, "service not found")
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

func (h *HealthServer) SetServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[service] = status
}

// overallLocked NOT_SERVING, если хотя бы одна зависимость недоступна
func (h *HealthServer) overallLocked() grpc_health_v1.HealthCheckResponse_ServingStatus {
	for _, st := range h.services {
		if st == grpc_health_v1.HealthCheckResponse_NOT_SERVING {
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

type serviceStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ServeHTTP отдает состояние сервисов для /healthz
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	overall := h.overallLocked()
	list := make([]serviceStatus, 0, len(h.services))
	for name, st := range h.services {
		list = append(list, serviceStatus{Name: name, Status: st.String(), Error: h.errs[name]})
	}
	h.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	code := http.StatusOK
	if overall != grpc_health_v1.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   overall.String(),
		"services": list,
	})
}
