package main

import (
	goContext "context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"eventflow/bugsink"
	"eventflow/changes"
	"eventflow/config"
	eventflowContext "eventflow/context"
	"eventflow/dispatch"
	"eventflow/executor"
	"eventflow/metrics"
	"eventflow/planner"
	"eventflow/quota"
	"eventflow/rabbit"
	"eventflow/reconciler"
	"eventflow/repository"
	"eventflow/sender"
	"eventflow/whatsapp"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const PID_FILE = "eventflow_pipeline.pid"

// createPidFile creates a PID file and locks it to prevent multiple instances
func createPidFile() error {
	// Check if PID file already exists
	if _, err := os.Stat(PID_FILE); err == nil {
		// PID file exists, check if process is still running
		pidBytes, err := os.ReadFile(PID_FILE)
		if err == nil {
			if pid, err := strconv.Atoi(string(pidBytes)); err == nil {
				// Check if process with this PID is still running
				if process, err := os.FindProcess(pid); err == nil {
					// Try to send signal 0 to check if process exists
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("EventFlow pipeline is already running with PID %d. Stop the existing instance first.", pid)
					}
				}
			}
		}
		// If we reach here, the PID file exists but process is not running
		log.Printf("[MAIN] Found stale PID file, removing it")
		os.Remove(PID_FILE)
	}

	// Create new PID file
	currentPid := os.Getpid()
	pidContent := fmt.Sprintf("%d", currentPid)

	if err := os.WriteFile(PID_FILE, []byte(pidContent), 0644); err != nil {
		return fmt.Errorf("failed to create PID file: %v", err)
	}

	log.Printf("[MAIN] Created PID file %s with PID %d", PID_FILE, currentPid)
	return nil
}

// removePidFile removes the PID file on shutdown
func removePidFile() {
	if err := os.Remove(PID_FILE); err != nil {
		log.Printf("[MAIN] Warning: failed to remove PID file: %v", err)
	} else {
		log.Printf("[MAIN] Removed PID file %s", PID_FILE)
	}
}

func initContext() *eventflowContext.Context {
	log.Println("[MAIN] Initializing application context")

	log.Printf("[MAIN] Using database connection string: %s", config.C().Db_Conn_Str)
	log.Printf("[MAIN] Using RabbitMQ URL: %s", config.C().Rabbit_Url)
	log.Printf("[MAIN] Using WhatsApp gateway: %s", config.C().Whatsapp_Api_Url)

	appContext := &eventflowContext.Context{}

	// Initialize Database
	log.Println("[MAIN] Connecting to PostgreSQL database...")
	db, err := sql.Open("postgres", config.C().Db_Conn_Str)
	if err != nil {
		log.Fatalf("[MAIN] Failed to open database connection: %v", err)
	}

	// Test database connection
	err = db.Ping()
	if err != nil {
		log.Fatalf("[MAIN] Failed to ping database: %v", err)
	}
	log.Println("[MAIN] Successfully connected to the database")

	// Set up context
	appContext.SetWhatsApp(whatsapp.NewClient(config.C().Whatsapp_Api_Url, config.C().Whatsapp_Api_Token))
	appContext.Repo = repository.NewRepository(db)
	appContext.Config = config.C()

	return appContext
}

// Reminder producer - reconciles abandoned changes and dispatches due messages
func main1() {
	log.Println("[MAIN1] Starting reminder producer goroutine")

	appContext := initContext()
	appContext.RabbitPublish = rabbit.NewRabbitClient(config.C().Rabbit_Url, "reminders")

	pl := planner.New(appContext.Repo)
	registry := changes.NewScheduleRegistry(pl, appContext.Repo)
	exec := executor.New(appContext.Repo)
	gate := quota.NewGate(appContext.Repo)

	worker := reconciler.NewWorker(appContext.Repo, registry, exec,
		config.C().ReconcileDwell(), config.C().Reconcile_Batch_Limit)
	dispatcher := dispatch.NewDispatcher(appContext.Repo, appContext, gate,
		config.C().Dispatch_Batch_Limit)

	ctx := goContext.Background()
	go worker.Run(ctx, config.C().ReconcileInterval())
	go dispatcher.Run(ctx, config.C().DispatchInterval())

	log.Println("[MAIN1] Reminder producer ready")
}

// Reminder consumer - delivers queued reminders with rate limiting
func main2() {
	log.Println("[MAIN2] Starting reminder consumer goroutine")

	appContext := initContext()
	appContext.RabbitConsume = rabbit.NewRabbitClient(config.C().Rabbit_Url, "reminders")

	gate := quota.NewGate(appContext.Repo)

	// Create and start sender
	s := sender.NewSender(appContext.Repo, gate, appContext.GetWhatsApp(),
		config.C().Sends_Per_Minute, config.C().SendRetryBackoff())
	s.Start(appContext.RabbitConsume)

	log.Println("[MAIN2] Reminder consumer ready")
}

var (
	isShuttingDown bool
)

func setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, starting graceful shutdown", sig)
		gracefulShutdown()
		os.Exit(0)
	}()
}

func gracefulShutdown() {
	log.Println("Starting graceful shutdown (max 30 seconds)")

	ctx, cancel := goContext.WithTimeout(goContext.Background(), 30*time.Second)
	defer cancel()

	isShuttingDown = true

	// Wait for current operations to complete (simplified)
	log.Println("Waiting for operations to complete...")

	// In a real implementation, we would:
	// - Wait for main1 and main2 to finish current operations
	// - Close database connections gracefully
	// - Close RabbitMQ connections
	// - Flush remaining metrics

	// For now, just wait a bit to simulate graceful shutdown
	select {
	case <-time.After(2 * time.Second):
		log.Println("Operations completed")
	case <-ctx.Done():
		log.Println("Timeout reached, forcing shutdown")
	}

	bugsink.Close()

	log.Println("Graceful shutdown completed")
}

func main() {
	// Initialize random seed
	rand.Seed(time.Now().UnixNano())

	// Initialize configuration
	config.Init("eventflow")

	// Create PID file to prevent multiple instances
	if err := createPidFile(); err != nil {
		log.Fatalf("[MAIN] %v", err)
	}

	// Ensure PID file is removed on exit
	defer removePidFile()

	// Initialize metrics system
	if err := metrics.Init(); err != nil {
		log.Fatalf("[MAIN] Failed to initialize metrics: %v", err)
	}

	// Initialize error tracking
	if err := bugsink.Init(); err != nil {
		log.Printf("[MAIN] Failed to initialize BugSink: %v", err)
	}

	// Setup graceful shutdown
	setupGracefulShutdown()

	log.Println("[MAIN] Starting EventFlow reminder pipeline...")
	log.Println("[MAIN] Press Ctrl+C to stop")

	// Start producer and consumer in separate goroutines
	go main1()
	go main2()

	// Keep the main goroutine alive
	forever := make(chan bool)
	<-forever
}
