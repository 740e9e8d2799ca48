package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted by Register. Exports may be nil to
// leave the export endpoints unmounted.
type Routes struct {
	Students      *StudentHandler
	Courses       *CourseHandler
	Enrollments   *EnrollmentHandler
	System        *SystemHandler
	Exports       *ExportHandler
	Metrics       *MetricsHandler
	ExposeMetrics bool
}

// Register mounts the probes at the root and the record API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		if rt.ExposeMetrics {
			r.GET("/metrics", rt.Metrics.Prometheus)
		}
	}

	api := r.Group(prefix)

	students := api.Group("/students")
	students.GET("", rt.Students.List)
	students.POST("", rt.Students.Create)
	students.GET("/:id", rt.Students.Get)
	students.PUT("/:id", rt.Students.Update)
	students.DELETE("/:id", rt.Students.Delete)
	students.POST("/:id/enrollments", rt.Students.Enroll)

	courses := api.Group("/courses")
	courses.GET("", rt.Courses.List)
	courses.POST("", rt.Courses.Create)
	courses.DELETE("/:id", rt.Courses.Delete)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", rt.Enrollments.List)
	enrollments.DELETE("/:id", rt.Enrollments.Delete)

	api.GET("/roster", rt.System.Roster)
	api.POST("/system/reset", rt.System.Reset)

	if rt.Exports != nil {
		api.GET("/exports/roster", rt.Exports.Roster)
	}
}
