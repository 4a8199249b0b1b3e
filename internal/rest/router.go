// Package rest exposes the clinic service as JSON over HTTP. Every route delegates to
// the same handler methods the gRPC service uses.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"clinic-records-api/internal/apperr"
	"clinic-records-api/internal/handler"
	"clinic-records-api/internal/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	AllowedOrigins []string
	// LoginLimiter guards the unauthenticated routes; nil disables limiting.
	LoginLimiter middleware.Limiter
	Metrics      *middleware.Metrics
	Gatherer     prometheus.Gatherer
}

func NewRouter(h *handler.Handler, v middleware.Verifier, db Pinger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Gin())
	}
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/health", health(db))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	authRoutes := r.Group("/auth")
	if opts.LoginLimiter != nil {
		authRoutes.Use(middleware.GinRateLimit(opts.LoginLimiter))
	}
	{
		authRoutes.POST("/login", login(h))
		authRoutes.POST("/register", call(h, (*handler.Handler).RegisterAccount, http.StatusCreated))
	}

	api := r.Group("/api", middleware.GinAuth(v))
	{
		api.GET("/accounts", call(h, (*handler.Handler).ListAccounts, http.StatusOK))
		api.PUT("/accounts/me/secret", call(h, (*handler.Handler).ChangeSecret, http.StatusOK))
		api.PUT("/accounts/me/image", call(h, (*handler.Handler).SetProfileImage, http.StatusOK))

		api.GET("/doctors", call(h, (*handler.Handler).ListDoctors, http.StatusOK))
		api.POST("/doctors", call(h, (*handler.Handler).RegisterDoctor, http.StatusCreated))
		api.GET("/doctors/:id", call(h, (*handler.Handler).GetDoctor, http.StatusOK))
		api.PUT("/doctors/:id", call(h, (*handler.Handler).UpdateDoctor, http.StatusOK))
		api.DELETE("/doctors/:id", call(h, (*handler.Handler).RemoveDoctor, http.StatusOK))

		api.GET("/patients", call(h, (*handler.Handler).ListPatients, http.StatusOK))
		api.POST("/patients", call(h, (*handler.Handler).RegisterPatient, http.StatusCreated))
		api.GET("/patients/:id", call(h, (*handler.Handler).GetPatient, http.StatusOK))
		api.PUT("/patients/:id", call(h, (*handler.Handler).UpdatePatient, http.StatusOK))
		api.DELETE("/patients/:id", call(h, (*handler.Handler).RemovePatient, http.StatusOK))

		api.GET("/appointments", call(h, (*handler.Handler).ListAppointments, http.StatusOK))
		api.POST("/appointments", call(h, (*handler.Handler).ScheduleAppointment, http.StatusCreated))
		api.PUT("/appointments/:id", call(h, (*handler.Handler).UpdateAppointment, http.StatusOK))
		api.DELETE("/appointments/:id", call(h, (*handler.Handler).RemoveAppointment, http.StatusOK))
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.TokenHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Printf("health: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// call adapts a handler method to a route. The JSON body and the :id path
// parameter are merged into one request message.
func call(h *handler.Handler, m handler.Method, okStatus int) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := request(c)
		if err != nil {
			fail(c, err)
			return
		}
		out, err := m(h, c.Request.Context(), req)
		if err != nil {
			fail(c, err)
			return
		}
		code := okStatus
		if out.GetFields()["outcome"].GetStringValue() == "not_found" {
			code = http.StatusNotFound
		}
		respond(c, code, out)
	}
}

// login keeps the {authenticated, token, account, message} shape on failure too.
func login(h *handler.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := request(c)
		if err != nil {
			fail(c, err)
			return
		}
		out, err := h.Login(c.Request.Context(), req)
		if err != nil {
			code, p := apperr.HTTPProblem(err)
			c.JSON(code, gin.H{
				"authenticated": false,
				"token":         nil,
				"account":       nil,
				"message":       p.Message,
				"code":          p.Code,
			})
			return
		}
		respond(c, http.StatusOK, out)
	}
}

func request(c *gin.Context) (*structpb.Struct, error) {
	body := map[string]any{}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apperr.Invalid(apperr.MalformedInput, "", "unreadable body")
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, apperr.Invalid(apperr.MalformedInput, "", "body must be a JSON object")
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, apperr.Invalid(apperr.MalformedInput, "", "body must be a JSON object")
		}
		if err := numbers("", obj); err != nil {
			return nil, err
		}
		body = obj
	}
	if raw := c.Param("id"); raw != "" {
		id, err := apperr.ParseID("id", raw)
		if err != nil {
			return nil, err
		}
		body["id"] = id
	}
	req, err := structpb.NewStruct(body)
	if err != nil {
		return nil, apperr.Invalid(apperr.MalformedInput, "", err.Error())
	}
	return req, nil
}

// numbers replaces every json.Number in v with a float64. Integers outside the
// range a float64 holds exactly are rejected rather than rounded.
func numbers(field string, v any) error {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if n, ok := e.(json.Number); ok {
				f, err := number(k, n)
				if err != nil {
					return err
				}
				t[k] = f
				continue
			}
			if err := numbers(k, e); err != nil {
				return err
			}
		}
	case []any:
		for i, e := range t {
			if n, ok := e.(json.Number); ok {
				f, err := number(field, n)
				if err != nil {
					return err
				}
				t[i] = f
				continue
			}
			if err := numbers(field, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func number(field string, n json.Number) (float64, error) {
	f, err := n.Float64()
	if err != nil || math.Abs(f) > apperr.MaxID {
		return 0, apperr.Invalid(apperr.MalformedInput, field, "number out of range")
	}
	return f, nil
}

func respond(c *gin.Context, code int, out *structpb.Struct) {
	b, err := protojson.Marshal(out)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(code, "application/json; charset=utf-8", b)
}

func fail(c *gin.Context, err error) {
	code, p := apperr.HTTPProblem(err)
	if code == http.StatusInternalServerError && !errors.Is(err, apperr.ErrUnavailable) {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, p)
}
