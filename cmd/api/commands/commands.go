package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/familyhub/core/internal/adapters/repository"
	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/infrastructure/server"
	"github.com/familyhub/core/internal/infrastructure/store"
	"github.com/familyhub/core/internal/ports"
	"github.com/familyhub/core/internal/queue"
	"github.com/familyhub/core/internal/sync"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FamilyHub API server",
		Long:  "Start the FamilyHub API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands.
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations for the postgres store backend (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command.
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create and manage accounts in the directory",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")

			if username == "" || password == "" {
				log.Fatal("Username and password are required")
			}

			createUser(username, email, password, role)
		},
	}

	createUserCmd.Flags().String("username", "", "Username (required)")
	createUserCmd.Flags().String("email", "", "Email address")
	createUserCmd.Flags().String("password", "", "Password (required)")
	createUserCmd.Flags().String("role", "solo", "Role (solo, owner, adult, kid, demo)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewDemoCommand creates the demo seeding command.
func NewDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Seed demo data",
		Long:  "Seed a demo family with members, reminders, chat and planner entries",
		Run: func(cmd *cobra.Command, args []string) {
			seedDemoData()
		},
	}
}

// NewClientCommand creates the client synchronizer command.
func NewClientCommand() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Run a client synchronizer session",
		Long:  "Hydrate a local cache for one user and keep it in step with the store until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			if username == "" {
				log.Fatal("Username is required")
			}
			runClient(username)
		},
	}

	clientCmd.Flags().String("username", "", "Username to sync (required)")
	return clientCmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print FamilyHub version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("FamilyHub Core v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	st, err := openStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to open document store", "error", err)
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Warnw("Redis unreachable, verification codes held in memory", "error", err)
			redisClient = nil
		}
		cancel()
	}

	srv, err := server.New(cfg, st, redisClient, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	appLogger.Infow("Starting FamilyHub API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"store_backend", cfg.Store.Backend,
	)

	if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
		appLogger.Fatalw("Server failed to start", "error", err)
	}
}

func runClient(username string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	st, err := openStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to open document store", "error", err)
	}
	defer st.Close()

	userRepo := repository.NewUserRepository(st)
	familyRepo := repository.NewFamilyRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)

	directory := services.NewDirectoryService(userRepo, plannerRepo, cfg.JWT, appLogger)
	families := services.NewFamilyService(familyRepo, userRepo, nil, appLogger)
	planners := services.NewPlannerService(plannerRepo, userRepo, nil, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	synchronizer := sync.New(username, directory, families, planners, appLogger)
	synchronizer.OnChange(func(doc sync.Document) {
		switch doc {
		case sync.DocumentFamily:
			if family := synchronizer.Family(); family != nil {
				appLogger.Infow("Family changed",
					"family_id", family.ID,
					"members", len(family.Members),
					"reminders", len(family.Reminders),
					"chat", len(family.Chat),
				)
			} else {
				appLogger.Infow("Family membership cleared")
			}
		case sync.DocumentPlanner:
			appLogger.Infow("Planner changed", "entries", len(synchronizer.Planner()))
		}
	})

	if err := synchronizer.Hydrate(ctx); err != nil {
		appLogger.Fatalw("Hydration failed", "error", err)
	}

	// Broker-backed deployments get push-triggered pulls; everyone else
	// polls on the configured interval.
	var familyFeed, plannerFeed sync.Feed
	if cfg.Queue.Enabled {
		familyFeed = queue.NewConsumerFeed(cfg.Queue, "families", "", appLogger)
		plannerFeed = queue.NewConsumerFeed(cfg.Queue, "planners", username, appLogger)
	} else {
		familyFeed = sync.NewTickerFeed(cfg.Sync.Interval)
		plannerFeed = sync.NewTickerFeed(cfg.Sync.Interval)
	}

	appLogger.Infow("Client session started",
		"username", username,
		"interval", cfg.Sync.Interval,
		"queue", cfg.Queue.Enabled,
	)
	synchronizer.Run(ctx, familyFeed, plannerFeed)
}

func openStore(cfg *config.Config, appLogger *logger.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		s, err := store.OpenPostgres(cfg.Database, appLogger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return store.OpenMemory(appLogger), nil
	default:
		s, err := store.Open(cfg.Store.Path, appLogger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func runMigration(direction string) {
	m := newMigrator()
	defer m.Close()

	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration %s failed: %v", direction, err)
	}

	log.Printf("Migration %s completed", direction)
}

func showMigrationVersion() {
	m := newMigrator()
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	log.Printf("Current migration version: %d (dirty: %t)", version, dirty)
}

func newMigrator() *migrate.Migrate {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	return m
}

func createUser(username, email, password, role string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	st, err := openStore(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer st.Close()

	userRepo := repository.NewUserRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)
	directory := services.NewDirectoryService(userRepo, plannerRepo, cfg.JWT, appLogger)

	user, err := directory.CreateUser(context.Background(), ports.CreateUserRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     entities.UserRole(role),
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	log.Printf("User created: %s (%s)", user.Username, user.Role)
}

func seedDemoData() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	st, err := openStore(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	userRepo := repository.NewUserRepository(st)
	familyRepo := repository.NewFamilyRepository(st)
	plannerRepo := repository.NewPlannerRepository(st)

	directory := services.NewDirectoryService(userRepo, plannerRepo, cfg.JWT, appLogger)
	families := services.NewFamilyService(familyRepo, userRepo, nil, appLogger)
	planners := services.NewPlannerService(plannerRepo, userRepo, nil, appLogger)

	members := []struct {
		username string
		role     entities.UserRole
	}{
		{"demo-parent", entities.UserRoleDemo},
		{"demo-partner", entities.UserRoleDemo},
		{"demo-kid", entities.UserRoleDemo},
	}

	for _, m := range members {
		_, err := directory.CreateUser(ctx, ports.CreateUserRequest{
			Username: m.username,
			Email:    m.username + "@example.com",
			Password: "demo-password",
			Role:     m.role,
		})
		if err != nil {
			log.Fatalf("Failed to create demo user %s: %v", m.username, err)
		}
	}

	family, err := families.CreateFamily(ctx, "The Demo Family", "demo-parent")
	if err != nil {
		log.Fatalf("Failed to create demo family: %v", err)
	}
	if _, _, err := families.JoinByCode(ctx, "demo-partner", entities.UserRoleAdult, family.Code); err != nil {
		log.Fatalf("Failed to join demo family: %v", err)
	}
	if _, _, err := families.JoinByCode(ctx, "demo-kid", entities.UserRoleKid, family.Code); err != nil {
		log.Fatalf("Failed to join demo family: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	family, err = families.GetByID(ctx, family.ID)
	if err != nil {
		log.Fatalf("Failed to reload demo family: %v", err)
	}
	family.Reminders = append(family.Reminders, entities.Reminder{
		ID:         entities.NewReminderID(),
		Title:      "Take out the recycling",
		Priority:   entities.PriorityMedium,
		Date:       today,
		AssignedTo: []string{"demo-kid"},
		CreatedBy:  "demo-parent",
		CreatedAt:  time.Now().UTC(),
	})
	family.Chat = append(family.Chat, entities.ChatMessage{
		ID:        entities.NewChatMessageID(),
		Username:  "demo-parent",
		Message:   "Welcome to FamilyHub!",
		CreatedAt: time.Now().UTC(),
	})
	if _, err := families.ReplaceFamily(ctx, family); err != nil {
		log.Fatalf("Failed to seed demo family content: %v", err)
	}

	entries := []entities.PlannerEntry{
		{
			Type:      entities.EntryTypeTask,
			Title:     "Grocery run",
			Priority:  entities.PriorityHigh,
			StartDate: today,
			StartTime: "17:30",
		},
		{
			Type:      entities.EntryTypeEvent,
			Title:     "Family game night",
			Priority:  entities.PriorityLow,
			StartDate: today,
			EndDate:   today,
			StartTime: "19:00",
			EndTime:   "21:00",
		},
	}
	if _, err := planners.ReplacePlanner(ctx, "demo-parent", entries); err != nil {
		log.Fatalf("Failed to seed demo planner: %v", err)
	}

	log.Printf("Demo data seeded: family %s, invite code %s", family.ID, family.Code)
}
