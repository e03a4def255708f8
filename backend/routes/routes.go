package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"vlab-server/backend/config"
	"vlab-server/backend/controllers"
	"vlab-server/backend/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	api := app.Group("/api")

	// Public pages
	api.Get("/", controllers.Index)
	api.Get("/about", controllers.About)
	api.Get("/contact", controllers.Contact)
	api.Get("/health", controllers.Health)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	api.Post("/auth/register", authController.Register)
	api.Post("/auth/login", authController.Login)
	api.Get("/auth/status", authController.AuthStatus)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// Profile routes
	profileController := controllers.NewProfileController(db, cfg)
	api.Get("/profile", authMiddleware, profileController.GetProfile)
	api.Get("/profile/complete", authMiddleware, profileController.GetCompleteProfile)
	api.Post("/profile/complete", authMiddleware, profileController.CompleteProfile)
	api.Put("/profile/edit", authMiddleware, profileController.EditProfile)

	// Lab content (behind the profile gate registered in main)
	catalogController := controllers.NewCatalogController(db, cfg)
	api.Get("/dashboard", authMiddleware, catalogController.Dashboard)
	api.Get("/subjects/:id", authMiddleware, catalogController.GetSubject)
	api.Get("/experiments/:id", authMiddleware, catalogController.GetExperiment)

	// Progress
	progressController := controllers.NewProgressController(db, cfg)
	api.Post("/experiments/:id/complete", authMiddleware, progressController.MarkComplete)
	api.Get("/progress", authMiddleware, progressController.StudentProgress)

	// Tests
	testsController := controllers.NewTestsController(db, cfg)
	api.Get("/experiments/:id/test", authMiddleware, testsController.BeginTest)
	api.Post("/experiments/:id/test", authMiddleware, testsController.SubmitTest)
	api.Get("/experiments/:id/test/result", authMiddleware, testsController.TestResult)

	// Admin console
	adminController := controllers.NewAdminController(db, cfg)
	admin := api.Group("/admin", authMiddleware, adminMiddleware)
	admin.Get("/subjects", adminController.ListSubjects)
	admin.Post("/subjects", adminController.CreateSubject)
	admin.Put("/subjects/:id", adminController.UpdateSubject)
	admin.Delete("/subjects/:id", adminController.DeleteSubject)
	admin.Post("/experiments", adminController.CreateExperiment)
	admin.Put("/experiments/:id", adminController.UpdateExperiment)
	admin.Post("/experiments/:id/viva-questions", adminController.AddVivaQuestion)
	admin.Post("/tests", adminController.CreateTest)
	admin.Put("/tests/:id", adminController.UpdateTest)
	admin.Post("/tests/:id/questions", adminController.AddMCQQuestion)
	admin.Put("/tests/:id/questions/:questionId", adminController.UpdateMCQQuestion)
	admin.Delete("/tests/:id/questions/:questionId", adminController.DeleteMCQQuestion)
}
