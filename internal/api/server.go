// 包 api 是账本与解密服务的 HTTP 接口
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/kms"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/restfulpayload"
	"github.com/CamberLoid/tzama/internal/types"
)

const Version = "0.1.0"

// 请求体上限
const maxBodyBytes = 1 << 20

type Config struct {
	ChainID             int64
	Coprocessor         types.Principal
	DefaultFaucetAmount uint64
}

type Server struct {
	ledger  *ledger.Ledger
	gateway gateway.Gateway
	kms     *kms.Service
	cfg     Config
	log     *slog.Logger

	router http.Handler
}

func New(l *ledger.Ledger, gw gateway.Gateway, k *kms.Service, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultFaucetAmount == 0 {
		cfg.DefaultFaucetAmount = 1000
	}
	s := &Server{
		ledger:  l,
		gateway: gw,
		kms:     k,
		cfg:     cfg,
		log:     log.With(slog.String("component", "api")),
	}
	s.router = s.buildRouter()
	return s
}

// Handler 返回配置好的路由
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)

	r.Get(restfulpayload.VersionEndpoint, s.HandleVersion)
	r.Get(restfulpayload.AddressEndpoint, s.HandleAddress)
	r.Post(restfulpayload.EncryptEndpoint, s.HandleEncrypt)
	r.Post(restfulpayload.DecryptEndpoint, s.HandleDecrypt)
	r.Method(http.MethodGet, restfulpayload.MetricsEndpoint, promhttp.Handler())

	r.Route("/ledger", func(lr chi.Router) {
		lr.Post("/faucet", s.HandleFaucet)
		lr.Post("/stake", s.HandleStake)
		lr.Post("/unstake", s.HandleUnstake)
		lr.Get("/balance/{owner}", s.HandleBalance)
		lr.Get("/staked/{owner}", s.HandleStaked)
		lr.Get("/total", s.HandleTotal)
		lr.Get("/tx/{uuid}", s.HandleTransaction)
	})

	r.NotFound(s.HandleNotFound)
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.log.Debug("http request",
			slog.String("request_id", chimw.GetReqID(req.Context())),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)))
	})
}
