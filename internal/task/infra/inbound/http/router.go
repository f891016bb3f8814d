package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/hexaquery/pkg/operators"
	"github.com/davicafu/hexaquery/pkg/operators/middleware"
)

// RegisterTaskRoutes registra las rutas HTTP para el dominio de Tareas. opts
// configura la extracción de operadores del listado.
func RegisterTaskRoutes(r gin.IRouter, handler *TaskHandler, opts *operators.Options, log *zap.Logger) {
	// Agrupamos todas las rutas de tareas bajo el prefijo "/tasks"
	tasks := r.Group("/tasks")
	{
		tasks.POST("", handler.CreateTask)                                           // Crear una nueva tarea
		tasks.GET("", middleware.MiddlewareWithLogger(opts, log), handler.ListTasks) // Listar con operadores
		tasks.GET("/:id", handler.GetTask)                                           // Obtener una tarea por su ID
		tasks.PUT("/:id", handler.UpdateTask)                                        // Actualizar una tarea existente
		tasks.DELETE("/:id", handler.DeleteTask)                                     // Eliminar una tarea
	}

	r.POST("/assignees", handler.RegisterAssignee) // Alta de usuarios poblables
}

// RegisterHealth expone GET /health.
func RegisterHealth(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
