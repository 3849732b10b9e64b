package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ticketry/backend/internal/config"
	"github.com/ticketry/backend/internal/database"
	"github.com/ticketry/backend/internal/handler"
	"github.com/ticketry/backend/internal/payment"
	"github.com/ticketry/backend/internal/queue"
	"github.com/ticketry/backend/internal/repository"
	"github.com/ticketry/backend/internal/router"
	"github.com/ticketry/backend/internal/service"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: rate limiting and caching fail open without it.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	tickets := repository.NewTicketRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)

	stripeClient := payment.NewClient(cfg.StripeSecretKey, 10*time.Second)
	publisher := queue.NewPublisher(cfg.AMQPURL)
	reconciler := service.NewReconciler(db, stripeClient, payments, bookings, tickets, publisher)

	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartSettlementConsumer(cfg.AMQPURL); err != nil {
				log.Printf("settlement consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.Validator = handler.NewValidator()

	authH := handler.NewAuthHandler(cfg, users, tokens)
	ticketH := handler.NewTicketHandler(tickets)
	bookingH := handler.NewBookingHandler(bookings, tickets)
	paymentH := handler.NewPaymentHandler(cfg, reconciler, stripeClient, bookings, tickets, payments)

	router.RegisterRoutes(e, ticketH, rdb)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterTickets(e, ticketH, cfg.JWTSecret)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret)
	router.RegisterPayments(e, paymentH, rdb, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
