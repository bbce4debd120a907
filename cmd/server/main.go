// The wastetrack reference server: accounts in MySQL, live collector
// locations in memory, pushed to residents over server-sent events.
package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"wastetrack/api"
	"wastetrack/server/config"
	"wastetrack/server/database"
	"wastetrack/server/handlers"
	"wastetrack/server/locations"
	"wastetrack/server/middleware"
)

func main() {
	cfg := config.Load()

	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("failed to initialize database schema: %v", err)
	}

	service := database.NewAuthService(db, cfg.JWTSecret)
	registry := locations.NewRegistry()

	if err := seedAdmin(cfg, service); err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}

	router := setupRouter(service, registry, cfg)

	log.Infof("wastetrack server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// seedAdmin creates the initial admin account when configured and not
// already present.
func seedAdmin(cfg *config.Config, service *database.AuthService) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	_, err := service.CreateUser(context.Background(), api.RegisterArgs{
		Username: "admin",
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		FullName: "Administrator",
	}, []string{api.RoleAdmin}, true)
	if err == database.ErrUserExists {
		return nil
	}
	return err
}

func setupRouter(service *database.AuthService, registry *locations.Registry, cfg *config.Config) *gin.Engine {
	router := gin.Default()
	router.SetTrustedProxies(cfg.TrustedProxies)
	router.Use(middleware.CORSMiddleware())

	h := handlers.NewHandlers(service, registry)

	router.GET("/health", h.HealthCheck)
	router.POST(api.RegisterEndpoint, h.Register)
	router.POST(api.LoginEndpoint, h.Login)

	authed := router.Group("/")
	authed.Use(middleware.AuthMiddleware(service))
	{
		authed.GET(api.MeEndpoint, h.Me)
		authed.GET(api.LocationsEndpoint, h.GetLocations)
		authed.GET(api.LocationStreamEndpoint, h.StreamLocations)
	}

	collector := router.Group("/")
	collector.Use(middleware.AuthMiddleware(service), middleware.RequireRole(service, api.RoleCollector))
	{
		collector.POST(api.LocationUpdateEndpoint, h.UpdateLocation)
	}

	admin := router.Group("/")
	admin.Use(middleware.AuthMiddleware(service), middleware.RequireRole(service, api.RoleAdmin))
	{
		admin.GET(api.CollectorListEndpoint, h.ListCollectors)
		admin.POST(api.AdminCollectorsEndpoint, h.CreateCollector)
		admin.DELETE(api.AdminCollectorsEndpoint+"/:userId", h.DeleteCollector)
	}

	return router
}
