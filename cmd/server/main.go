package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Call/internal/adapters/http"
	"github.com/dkeye/Call/internal/adapters/rtc"
	sig "github.com/dkeye/Call/internal/adapters/signal"
	"github.com/dkeye/Call/internal/adapters/store/memory"
	"github.com/dkeye/Call/internal/adapters/store/redisstore"
	"github.com/dkeye/Call/internal/app"
	"github.com/dkeye/Call/internal/app/signaling"
	"github.com/dkeye/Call/internal/config"
	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	roomStore, memberStore, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer closeStore()

	ice, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ice_servers")
	}

	members := app.NewMemberDirectory(memberStore)
	rooms := app.NewRoomDirectory(roomStore, members, app.WithCodeAttempts(cfg.Room.CodeAttempts))
	reg := app.NewRegistry()
	rooms.OnRemoved(func(code domain.RoomCode) {
		reg.DropTopic(core.RoomTopic(code))
	})

	policy, err := app.NewPolicy(cfg.Backpressure)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid backpressure")
	}
	ctrl := sig.NewSignalWSController(reg, policy, rooms, sig.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		RateLimit:  cfg.Rate.Limit,
		RateBurst:  cfg.Rate.Burst,
	})
	ctrl.Router = signaling.NewRouter(rooms, ctrl)

	h := &router.Handlers{
		Members:    members,
		Rooms:      rooms,
		Tokens:     router.NewTokenIssuer(cfg.Secret, cfg.TokenTTL),
		ICEServers: ice,
		Sessions:   ctrl.Sessions,
	}
	r := router.SetupRouter(ctx, cfg, h, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Call signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStores(ctx context.Context, cfg *config.Config) (core.RoomStore, core.MemberStore, func(), error) {
	switch cfg.Store.Driver {
	case "redis":
		opt := redisstore.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		}
		rdb := redisstore.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Str("module", "store.redis").Msg("close client")
			}
		}
		return redisstore.NewRoomStore(rdb, opt.Prefix), redisstore.NewMemberStore(rdb, opt.Prefix), closeFn, nil
	default:
		return memory.NewRoomStore(), memory.NewMemberStore(), func() {}, nil
	}
}
