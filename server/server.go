package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/mailru/easyjson/jwriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/royalcat/rgeocount/pipeline"
	"github.com/royalcat/rgeocount/report"
	"github.com/royalcat/rgeocount/timewindow"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/royalcat/rgeocount/server")

// Server answers count queries over one classified point set.
// Results are memoised per window since the classified set never changes.
type Server struct {
	log        *slog.Logger
	classified *pipeline.Classified

	results *xsync.MapOf[timewindow.Window, []byte]

	metricCallCount metric.Int64Counter
	metricCacheHits metric.Int64Counter
}

func New(classified *pipeline.Classified) (*Server, error) {
	metricCallCount, err := meter.Int64Counter("http_call_total")
	if err != nil {
		return nil, err
	}
	metricCacheHits, err := meter.Int64Counter("counts_cache_hits_total")
	if err != nil {
		return nil, err
	}

	return &Server{
		log:             slog.Default().With("component", "server"),
		classified:      classified,
		results:         xsync.NewMapOf[timewindow.Window, []byte](),
		metricCallCount: metricCallCount,
		metricCacheHits: metricCacheHits,
	}, nil
}

func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()
	r.GET("/counts", s.CountsHandler)
	r.GET("/counts/{date}", s.CountsHandler)
	r.GET("/dates", s.DatesHandler)
	r.GET("/outside", s.OutsideHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r.Handler
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context, address string) error {
	server := &fasthttp.Server{
		ReadTimeout: time.Second,
		Handler:     s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", "address", address)
		errCh <- server.ListenAndServe(address)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", address, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

func (s *Server) call(ctx *fasthttp.RequestCtx, endpoint string) {
	s.metricCallCount.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// CountsHandler serves all time counts, or a single date taken from the path
// or the date query argument.
func (s *Server) CountsHandler(ctx *fasthttp.RequestCtx) {
	s.call(ctx, "counts")

	raw, _ := ctx.UserValue("date").(string)
	if raw == "" {
		raw = string(ctx.QueryArgs().Peek("date"))
	}
	window, err := timewindow.ParseWindow(raw)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("invalid date: " + err.Error())
		return
	}

	body, err := s.counts(ctx, window)
	if err != nil {
		s.log.ErrorContext(ctx, "Count failed", "window", window.String(), "error", err)
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(body)
}

func (s *Server) counts(ctx context.Context, window timewindow.Window) ([]byte, error) {
	if body, ok := s.results.Load(window); ok {
		s.metricCacheHits.Add(ctx, 1)
		return body, nil
	}

	res, err := s.classified.Count(ctx, window)
	if err != nil {
		return nil, err
	}

	w := jwriter.Writer{}
	report.MarshalResult(&w, res)
	body, err := w.BuildBytes()
	if err != nil {
		return nil, err
	}

	body, _ = s.results.LoadOrStore(window, body)
	return body, nil
}

func (s *Server) DatesHandler(ctx *fasthttp.RequestCtx) {
	s.call(ctx, "dates")

	w := jwriter.Writer{}
	w.RawByte('[')
	for i, d := range s.classified.Dates() {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(d.String())
	}
	w.RawByte(']')

	s.writeJSON(ctx, &w)
}

// OutsideHandler lists points that fell in no region as [[lon,lat],...].
func (s *Server) OutsideHandler(ctx *fasthttp.RequestCtx) {
	s.call(ctx, "outside")

	w := jwriter.Writer{}
	w.RawByte('[')
	for i, p := range s.classified.Outside {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('[')
		w.Float64(p.Point.Lon())
		w.RawByte(',')
		w.Float64(p.Point.Lat())
		w.RawByte(']')
	}
	w.RawByte(']')

	s.writeJSON(ctx, &w)
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, w *jwriter.Writer) {
	body, err := w.BuildBytes()
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(body)
}
