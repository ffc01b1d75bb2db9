package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsdesk/helpdesk/internal/api/http"
	"github.com/opsdesk/helpdesk/internal/api/http/handlers"
	"github.com/opsdesk/helpdesk/internal/auth"
	"github.com/opsdesk/helpdesk/internal/config"
	"github.com/opsdesk/helpdesk/internal/delegation"
	"github.com/opsdesk/helpdesk/internal/events"
	"github.com/opsdesk/helpdesk/internal/observability"
	"github.com/opsdesk/helpdesk/internal/persistence"
	"github.com/opsdesk/helpdesk/internal/repository"
	"github.com/opsdesk/helpdesk/internal/service"
	"github.com/opsdesk/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	orgRepo := repository.NewOrganizationRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	sealer, err := delegation.NewTokenSealer(cfg.Delegation.ContextSecret)
	if err != nil {
		logger.Fatal("failed to init delegation sealer", zap.Error(err))
	}
	verifier := delegation.NewVerifier(membershipRepo)
	locker := persistence.NewOrgLocker(redis.Client, logger)
	dispatcher := events.NewInMemoryDispatcher()

	membershipService := service.NewMembershipService(service.MembershipDependencies{
		MembershipRepo: membershipRepo,
		DepartmentRepo: departmentRepo,
		UserRepo:       userRepo,
		Locker:         locker,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		MembershipService: membershipService,
	})
	organizationService := service.NewOrganizationService(service.OrganizationDependencies{
		OrganizationRepo: orgRepo,
		MembershipRepo:   membershipRepo,
		Sealer:           sealer,
	})
	departmentService := service.NewDepartmentService(service.DepartmentDependencies{
		DepartmentRepo: departmentRepo,
		MembershipRepo: membershipRepo,
		TicketRepo:     ticketRepo,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		DepartmentRepo: departmentRepo,
		MembershipRepo: membershipRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, membershipRepo)
	delegationMiddleware := delegation.NewMiddleware(sealer)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:               handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:                handlers.NewUsersHandler(authService),
		Organizations:        handlers.NewOrganizationsHandler(organizationService),
		Departments:          handlers.NewDepartmentsHandler(departmentService),
		Members:              handlers.NewMembersHandler(membershipService),
		Tickets:              handlers.NewTicketsHandler(ticketService),
		Agent:                handlers.NewAgentHandler(verifier, ticketService, organizationService),
		AuthMiddleware:       authMiddleware,
		DelegationMiddleware: delegationMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
