package api

import (
	"net/http"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/metrics"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	stravaWebhookSecret string,
	logger *zap.Logger,
	authService service.AuthService,
	profileService service.ProfileService,
	planService service.PlanService,
	scheduleService service.ScheduleService,
	activityService service.ActivityService,
	connectionService service.ConnectionService,
	adminService service.AdminService,
) {
	authHandler := NewAuthHandler(authService)
	profileHandler := NewProfileHandler(profileService)
	planHandler := NewPlanHandler(planService)
	scheduleHandler := NewScheduleHandler(scheduleService)
	activityHandler := NewActivityHandler(activityService)
	connectionHandler := NewConnectionHandler(connectionService, stravaWebhookSecret, logger)
	adminHandler := NewAdminHandler(adminService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Strava calls these without credentials; the verify token guards
		// the handshake and events are processed best-effort.
		webhookGroup := apiV1.Group("/webhooks")
		{
			webhookGroup.GET("/strava", connectionHandler.VerifyStravaWebhook)
			webhookGroup.POST("/strava", connectionHandler.ReceiveStravaWebhook)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", authHandler.Me)

		// --- Athlete Profile ---
		protected.GET("/profile", profileHandler.GetProfile)
		protected.PUT("/profile", profileHandler.SaveProfile)
		protected.PATCH("/profile/settings", profileHandler.UpdateSettings)

		// --- Training Plan Templates ---
		planGroup := protected.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.GetPlans)
			planGroup.GET("/:planId", planHandler.GetPlan)
			planGroup.PUT("/:planId", planHandler.UpdatePlan)
			planGroup.DELETE("/:planId", planHandler.DeletePlan)
		}

		// --- Workout Library ---
		libraryGroup := protected.Group("/library/workouts")
		{
			libraryGroup.POST("", planHandler.CreateLibraryWorkout)
			libraryGroup.GET("", planHandler.GetLibraryWorkouts)
			libraryGroup.GET("/:workoutId", planHandler.GetLibraryWorkout)
			libraryGroup.PUT("/:workoutId", planHandler.UpdateLibraryWorkout)
			libraryGroup.DELETE("/:workoutId", planHandler.DeleteLibraryWorkout)
		}

		// --- Plan Instances (plans placed on the calendar) ---
		instanceGroup := protected.Group("/plan-instances")
		{
			instanceGroup.POST("", scheduleHandler.CreateInstance)
			instanceGroup.GET("", scheduleHandler.GetInstances)
			instanceGroup.GET("/:instanceId", scheduleHandler.GetInstance)
			// DELETE cancels rather than erases; history stays.
			instanceGroup.DELETE("/:instanceId", scheduleHandler.CancelInstance)
			instanceGroup.POST("/:instanceId/workouts", scheduleHandler.InsertWorkout)
		}

		// --- Calendar ---
		protected.GET("/schedule", scheduleHandler.GetSchedule)
		protected.PATCH("/schedule/workouts/:workoutId", scheduleHandler.UpdateWorkoutStatus)

		// --- Activities ---
		activityGroup := protected.Group("/activities")
		{
			activityGroup.POST("", activityHandler.CreateActivity)
			activityGroup.GET("", activityHandler.GetActivities)
			activityGroup.POST("/import", activityHandler.ImportGPX)
			activityGroup.GET("/:activityId", activityHandler.GetActivity)
			activityGroup.DELETE("/:activityId", activityHandler.DeleteActivity)

			// FIT file attachment (presigned flow)
			activityGroup.POST("/:activityId/file-upload-url", activityHandler.RequestFileUpload)
			activityGroup.POST("/:activityId/file", activityHandler.ConfirmFileUpload)
			activityGroup.GET("/:activityId/file-download-url", activityHandler.FileDownloadURL)
			activityGroup.DELETE("/:activityId/file", activityHandler.DeleteFile)
		}

		// --- Provider Connections ---
		connectionGroup := protected.Group("/connections")
		{
			connectionGroup.GET("", connectionHandler.GetConnections)
			connectionGroup.GET("/:provider/connect", connectionHandler.Connect)
			connectionGroup.GET("/:provider/callback", connectionHandler.Callback)
			connectionGroup.DELETE("/:provider", connectionHandler.Disconnect)
			connectionGroup.POST("/:provider/sync", connectionHandler.Sync)
		}

		// --- Admin ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.GET("/users/:userId", adminHandler.GetUser)
		}
	}
}
