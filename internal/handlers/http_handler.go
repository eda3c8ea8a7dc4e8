package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/asakaida/reviewlab/internal/infrastructure/metrics"
	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/asakaida/reviewlab/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const indexPage = "<h1>Review Lab</h1>"

// HTTPHandler serves the JSON record API
type HTTPHandler struct {
	catalog services.CatalogServiceInterface
	log     *logrus.Logger
}

// NewHTTPHandler creates a new HTTPHandler
func NewHTTPHandler(catalog services.CatalogServiceInterface, log *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{catalog: catalog, log: log}
}

// Router builds the chi router with middleware and every route registered.
// collector may be nil to disable request metrics.
func (h *HTTPHandler) Router(collector *metrics.Collector, exporter *metrics.PrometheusExporter) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(h.log),
		middleware.Recoverer,
	)
	if collector != nil {
		r.Use(metrics.HTTPMiddleware(collector, exporter))
	}

	r.Get("/", h.index)

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getCustomer)
			r.Delete("/", h.deleteCustomer)
			r.Get("/reviews", h.customerReviews)
			r.Get("/items", h.customerItems)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.listItems)
		r.Post("/", h.createItem)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getItem)
			r.Delete("/", h.deleteItem)
			r.Get("/reviews", h.itemReviews)
		})
	})

	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.listReviews)
		r.Post("/", h.createReview)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getReview)
			r.Delete("/", h.deleteReview)
		})
	})

	return r
}

// requestLogger logs one line per request with logrus
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			}).Info("http request")
		})
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	// Encode first: a Sequence can fail while materializing.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.writeError(w, r, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": clientMessage(err, code)})
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q is not a positive integer", services.ErrInvalidInput, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a positive integer", services.ErrInvalidInput, name, raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", services.ErrInvalidInput, err)
	}
	return nil
}

func (h *HTTPHandler) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

// byID adapts a lookup taking the {id} path parameter into a handler
func (h *HTTPHandler) byID(w http.ResponseWriter, r *http.Request, get func(id int64) (any, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := get(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, v)
}

func (h *HTTPHandler) deleteByID(w http.ResponseWriter, r *http.Request, del func(id int64) error) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := del(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, code int, v any, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, code, v)
}

func (h *HTTPHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListCustomers(r.Context())
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *HTTPHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in services.CustomerInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.catalog.CreateCustomer(r.Context(), &in)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *HTTPHandler) getCustomer(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.GetCustomer(r.Context(), id) })
}

func (h *HTTPHandler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, func(id int64) error { return h.catalog.DeleteCustomer(r.Context(), id) })
}

func (h *HTTPHandler) customerReviews(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.CustomerReviews(r.Context(), id) })
}

func (h *HTTPHandler) customerItems(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.CustomerItems(r.Context(), id) })
}

func (h *HTTPHandler) listItems(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListItems(r.Context())
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *HTTPHandler) createItem(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.catalog.CreateItem(r.Context(), &in)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *HTTPHandler) getItem(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.GetItem(r.Context(), id) })
}

func (h *HTTPHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, func(id int64) error { return h.catalog.DeleteItem(r.Context(), id) })
}

func (h *HTTPHandler) itemReviews(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.ItemReviews(r.Context(), id) })
}

func (h *HTTPHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	customerID, err := queryID(r, "customer_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := queryID(r, "item_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.catalog.ListReviews(r.Context(), &repositories.ReviewFilter{CustomerID: customerID, ItemID: itemID})
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *HTTPHandler) createReview(w http.ResponseWriter, r *http.Request) {
	var in services.ReviewInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.catalog.CreateReview(r.Context(), &in)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *HTTPHandler) getReview(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, func(id int64) (any, error) { return h.catalog.GetReview(r.Context(), id) })
}

func (h *HTTPHandler) deleteReview(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, func(id int64) error { return h.catalog.DeleteReview(r.Context(), id) })
}
