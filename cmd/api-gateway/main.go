package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/class-scheduling-api/api/swagger"
	"github.com/noah-isme/class-scheduling-api/internal/handler"
	"github.com/noah-isme/class-scheduling-api/internal/repository"
	"github.com/noah-isme/class-scheduling-api/internal/router"
	"github.com/noah-isme/class-scheduling-api/internal/service"
	"github.com/noah-isme/class-scheduling-api/pkg/cache"
	"github.com/noah-isme/class-scheduling-api/pkg/config"
	"github.com/noah-isme/class-scheduling-api/pkg/database"
	"github.com/noah-isme/class-scheduling-api/pkg/jobs"
	"github.com/noah-isme/class-scheduling-api/pkg/logger"
	"github.com/noah-isme/class-scheduling-api/pkg/storage"
	"github.com/noah-isme/class-scheduling-api/pkg/validation"
)

// @title Class Scheduling API
// @version 1.0.0
// @description School timetable service with room, teacher and enrollment conflict detection.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := database.RunMigrations(db, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"database": db}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, cfg.Cache.Namespace, logr)
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	validate := validation.New()
	tx := repository.NewTxManager(db)
	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "class-scheduling-api",
	})
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, tx, userRepo, cfg.Provisioning.DefaultPassword, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, userRepo, tx, userRepo, cfg.Provisioning.DefaultPassword, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, userRepo, cacheSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, teacherRepo, userRepo, cacheSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, subjectRepo, classroomRepo, userRepo, cacheSvc, metrics, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, subjectRepo, scheduleRepo, userRepo, cacheSvc, metrics, validate, logr)
	timetableSvc := service.NewTimetableService(scheduleRepo, studentRepo, classroomRepo, cacheSvc, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, scheduleRepo, studentRepo, teacherRepo, userRepo, validate, cfg.Attendance.Location(), logr)
	userSvc := service.NewUserService(userRepo, userRepo, userRepo, cfg.Provisioning.DefaultPassword, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, scheduleRepo, enrollmentRepo, teacherRepo, studentRepo, cacheSvc, cfg.Attendance.Location(), logr)

	auditSvc, queue, err := buildConflictAudit(cfg, scheduleRepo, metrics, logr)
	if err != nil {
		logr.Fatal("failed to init conflict audit", zap.Error(err))
	}
	queue.Start(ctx)
	defer queue.Stop()
	auditSvc.StartCleanup(ctx, time.Hour)

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Observer:       metrics,
		Audit:          userRepo,
		StudentOwner: func(ctx context.Context, userID string) (string, error) {
			student, err := studentRepo.FindByUserID(ctx, userID)
			if err != nil {
				return "", err
			}
			return student.ID, nil
		},
		TeacherOwner: func(ctx context.Context, userID string) (string, error) {
			teacher, err := teacherRepo.FindByUserID(ctx, userID)
			if err != nil {
				return "", err
			}
			return teacher.ID, nil
		},
		Logger: logr,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Teachers:      handler.NewTeacherHandler(teacherSvc, scheduleSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Classrooms:    handler.NewClassroomHandler(classroomSvc),
		Subjects:      handler.NewSubjectHandler(subjectSvc),
		Schedules:     handler.NewScheduleHandler(scheduleSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Timetables:    handler.NewTimetableHandler(timetableSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		ConflictAudit: handler.NewConflictAuditHandler(auditSvc),
		Users:         handler.NewUserHandler(userSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Metrics:       handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildConflictAudit(cfg *config.Config, schedules *repository.ScheduleRepository, metrics *service.MetricsService, logr *zap.Logger) (*service.ConflictAuditService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.ConflictAudit.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.ConflictAudit.SignedURLSecret, cfg.ConflictAudit.SignedURLTTL)
	store := service.NewConflictAuditStore()

	worker := service.NewConflictAuditWorker(store, schedules, files, signer, metrics, cfg.APIPrefix+"/conflict-audits/download", logr)
	queue := jobs.NewQueue("conflict-audit", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.ConflictAudit.Workers,
		MaxRetries: cfg.ConflictAudit.Retries,
		RetryDelay: 2 * time.Second,
		OnFailure:  worker.MarkFailed,
		Logger:     logr,
	})

	return service.NewConflictAuditService(store, queue, files, signer, metrics, 24*time.Hour, logr), queue, nil
}
