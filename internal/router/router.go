package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/class-scheduling-api/internal/handler"
	"github.com/noah-isme/class-scheduling-api/internal/middleware"
	"github.com/noah-isme/class-scheduling-api/internal/models"
	"github.com/noah-isme/class-scheduling-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/class-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/class-scheduling-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth          *handler.AuthHandler
	Teachers      *handler.TeacherHandler
	Students      *handler.StudentHandler
	Classrooms    *handler.ClassroomHandler
	Subjects      *handler.SubjectHandler
	Schedules     *handler.ScheduleHandler
	Enrollments   *handler.EnrollmentHandler
	Timetables    *handler.TimetableHandler
	Attendance    *handler.AttendanceHandler
	ConflictAudit *handler.ConflictAuditHandler
	Users         *handler.UserHandler
	Dashboard     *handler.DashboardHandler
	Metrics       *handler.MetricsHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Tokens         middleware.TokenValidator
	Observer       middleware.HTTPObserver
	Audit          middleware.AuditWriter
	// StudentOwner and TeacherOwner resolve a login to the student or teacher it belongs to.
	StudentOwner middleware.OwnerResolver
	TeacherOwner middleware.OwnerResolver
	Logger       *zap.Logger
}

// New builds the gin engine with all routes registered.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(corsmiddleware.Config{
		AllowedOrigins: opts.AllowedOrigins,
		ExposeHeaders:  []string{"Content-Disposition", reqidmiddleware.Header},
		MaxAge:         10 * time.Minute,
	}))
	r.Use(middleware.WithResponseMeta())
	if opts.Observer != nil {
		r.Use(middleware.Metrics(opts.Observer))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	registerAuth(api, opts, h)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	registerPeople(secured, opts, h)
	registerUsers(secured, h)
	registerCatalog(secured, h)
	registerScheduling(secured, opts, h)
	registerAttendance(secured, h)
	registerConflictAudit(secured, opts, h)

	return r
}

func registerAuth(api *gin.RouterGroup, opts Options, h Handlers) {
	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	authed := auth.Group("")
	authed.Use(middleware.JWT(opts.Tokens))
	authed.POST("/logout", h.Auth.Logout)
	authed.GET("/me", h.Auth.Me)
}

func registerPeople(api *gin.RouterGroup, opts Options, h Handlers) {
	admins := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	teachers := api.Group("/teachers")
	teachers.GET("", staff, h.Teachers.List)
	teachers.GET("/:id", staff, h.Teachers.Get)
	teachers.POST("", admins, h.Teachers.Create)
	teachers.PUT("/:id", admins, h.Teachers.Update)
	teachers.DELETE("/:id", admins, h.Teachers.Delete)
	teachers.POST("/:id/reset-password", admins, h.Teachers.ResetPassword)
	teachers.GET("/:id/schedules", middleware.RolesOrOwner(opts.TeacherOwner, models.RoleAdmin), h.Teachers.Schedules)
	teachers.GET("/:id/dashboard", middleware.RolesOrOwner(opts.TeacherOwner, models.RoleAdmin), h.Dashboard.Teacher)
	teachers.GET("/:id/attendance", middleware.RolesOrOwner(opts.TeacherOwner, models.RoleAdmin), h.Attendance.ListForTeacher)

	students := api.Group("/students")
	students.GET("", staff, h.Students.List)
	students.GET("/:id", staff, h.Students.Get)
	students.POST("", admins, h.Students.Create)
	students.PUT("/:id", admins, h.Students.Update)
	students.DELETE("/:id", admins, h.Students.Delete)
	students.PUT("/:id/rfid", admins, h.Students.AssignRFID)
	students.POST("/:id/reset-password", admins, h.Students.ResetPassword)
	students.GET("/:id/dashboard", middleware.RolesOrOwner(opts.StudentOwner, models.RoleAdmin), h.Dashboard.Student)

	api.GET("/dashboard", admins, h.Dashboard.Admin)
}

func registerUsers(api *gin.RouterGroup, h Handlers) {
	users := api.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.POST("/:id/reset-password", h.Users.ResetPassword)
}

func registerCatalog(api *gin.RouterGroup, h Handlers) {
	admins := middleware.RequireRoles(models.RoleAdmin)

	classrooms := api.Group("/classrooms")
	classrooms.GET("", h.Classrooms.List)
	classrooms.GET("/:id", h.Classrooms.Get)
	classrooms.POST("", admins, h.Classrooms.Create)
	classrooms.PUT("/:id", admins, h.Classrooms.Update)
	classrooms.PATCH("/:id/toggle", admins, h.Classrooms.Toggle)
	classrooms.DELETE("/:id", admins, h.Classrooms.Delete)
	classrooms.GET("/:id/timetable", h.Timetables.Classroom)

	subjects := api.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.POST("", admins, h.Subjects.Create)
	subjects.PUT("/:id", admins, h.Subjects.Update)
	subjects.PATCH("/:id/toggle", admins, h.Subjects.Toggle)
	subjects.DELETE("/:id", admins, h.Subjects.Delete)
}

func registerScheduling(api *gin.RouterGroup, opts Options, h Handlers) {
	admins := middleware.RequireRoles(models.RoleAdmin)
	adminOrSelf := middleware.RolesOrOwner(opts.StudentOwner, models.RoleAdmin)

	schedules := api.Group("/schedules")
	schedules.GET("", h.Schedules.List)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.POST("/check", admins, h.Schedules.Check)
	schedules.POST("", admins, h.Schedules.Create)
	schedules.PUT("/:id", admins, h.Schedules.Update)
	schedules.DELETE("/:id", admins, h.Schedules.Delete)

	students := api.Group("/students/:id")
	students.GET("/subjects", adminOrSelf, h.Enrollments.List)
	students.POST("/subjects", admins, h.Enrollments.Enroll)
	students.POST("/subjects/check", admins, h.Enrollments.Check)
	students.DELETE("/subjects/:subjectId", admins, h.Enrollments.Unenroll)
	students.GET("/timetable",
		middleware.RolesOrOwner(opts.StudentOwner, models.RoleAdmin, models.RoleTeacher),
		middleware.Audit(opts.Audit, models.AuditActionExport, "student_timetable"),
		h.Timetables.Student)
}

func registerAttendance(api *gin.RouterGroup, h Handlers) {
	admins := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	// the service narrows teachers to their own subjects
	api.POST("/schedules/:id/attendance", staff, h.Attendance.Record)
	api.GET("/schedules/:id/attendance", staff, h.Attendance.ListForSchedule)

	attendance := api.Group("/attendance")
	attendance.GET("", admins, h.Attendance.List)
	attendance.POST("/rfid", admins, h.Attendance.ScanRFID)
}

func registerConflictAudit(api *gin.RouterGroup, opts Options, h Handlers) {
	audits := api.Group("/conflict-audits")
	audits.Use(middleware.RequireRoles(models.RoleAdmin))
	audits.POST("", h.ConflictAudit.Start)
	audits.GET("/download", middleware.Audit(opts.Audit, models.AuditActionExport, "conflict_audit"), h.ConflictAudit.Download)
	audits.GET("/:id", h.ConflictAudit.Status)
}
