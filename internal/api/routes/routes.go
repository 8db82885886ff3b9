package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yoockh/yoocare/internal/api/handlers"
	"github.com/yoockh/yoocare/internal/api/middleware"
)

type Deps struct {
	Intake  *handlers.IntakeHandler
	Patient *handlers.PatientHandler
	Triage  *handlers.TriageHandler
	Doctor  *handlers.DoctorHandler
	WS      *handlers.WSHandler

	// IntakeLimiter throttles voice submissions per client IP; nil disables it.
	IntakeLimiter *middleware.IPRateLimiter
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	intake := auth.Group("/intake")
	if d.IntakeLimiter != nil {
		intake.Use(d.IntakeLimiter.Middleware())
	}
	intake.POST("", d.Intake.Submit)
	intake.POST("/async", d.Intake.SubmitAsync)
	auth.GET("/intake/jobs/:job_id", d.Intake.GetJob)

	auth.GET("/patient/me", d.Patient.Me)
	auth.PUT("/patient/me", d.Patient.Update)
	auth.GET("/patient/history", d.Patient.History)
	auth.GET("/patient/voices", d.Patient.Voices)

	auth.POST("/triage/symptoms", d.Triage.Symptoms)
	auth.GET("/specialists", d.Triage.Specialists)
	auth.GET("/quota", middleware.RequireAdmin(), d.Triage.Quota)

	auth.GET("/doctor/alerts", middleware.RequireDoctor(), d.Doctor.Alerts)

	// WebSocket
	auth.GET("/ws/intake/:job_id", d.WS.IntakeWS)
}
