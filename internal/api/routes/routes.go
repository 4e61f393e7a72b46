// Package routes wires the handler methods onto gin routes, mirroring
// the bit-exact paths of spec.md 6.1 plus SPEC_FULL.md's supplemented
// repair and integrity routes. Route registration style (grouped
// gin.RouterGroup, middleware attached per group) follows the
// teacher's internal/api/routes package.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/computeheavy/gonk/internal/api/handlers"
	"github.com/computeheavy/gonk/internal/api/middleware"
)

// Setup builds the gin.Engine for the whole HTTP surface. keys
// resolves the x-api-key header every route requires.
func Setup(h *handlers.Handler, keys middleware.APIKeyResolver) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	router.GET("/healthz", func(c *gin.Context) { c.Status(200) })

	api := router.Group("/")
	api.Use(middleware.Authentication(keys))
	{
		api.POST("/datasets", h.CreateDataset)
		api.GET("/datasets", h.ListDatasets)

		ds := api.Group("/datasets/:dataset")
		{
			ds.GET("/owners", h.ListOwners)
			ds.PUT("/owners/:owner", h.AddOwner)
			ds.DELETE("/owners/:owner", h.RemoveOwner)

			ds.POST("/schemas", h.CreateSchema)
			ds.GET("/schemas", h.ListSchemas)
			ds.GET("/schemas/:name", h.GetSchemaOrByStatus)
			ds.PATCH("/schemas/:name", h.UpdateSchema)
			ds.GET("/schemas/:name/:version", h.GetSchemaVersion)
			ds.DELETE("/schemas/:name/:version", h.DeprecateSchema)
			ds.POST("/schemas/:name/:version/repair", h.RepairSchema)

			ds.POST("/objects", h.CreateObject)
			ds.GET("/objects", h.ListObjects)
			ds.GET("/objects/:uuid", h.GetObjectOrByStatus)
			ds.PATCH("/objects/:uuid", h.UpdateObject)
			ds.GET("/objects/:uuid/:version", h.GetObjectVersion)
			ds.DELETE("/objects/:uuid/:version", h.DeleteObject)
			ds.POST("/objects/:uuid/:version/repair", h.RepairObject)

			ds.POST("/annotations", h.CreateAnnotation)
			ds.GET("/annotations", h.ListAnnotations)
			ds.GET("/annotations/:uuid", h.GetAnnotationOrByStatus)
			ds.PATCH("/annotations/:uuid", h.UpdateAnnotation)
			ds.GET("/annotations/:uuid/:version", h.GetAnnotationVersion)
			ds.DELETE("/annotations/:uuid/:version", h.DeleteAnnotation)
			ds.POST("/annotations/:uuid/:version/repair", h.RepairAnnotation)

			ds.GET("/events", h.ListEvents)
			ds.PUT("/events/:event/accept", h.AcceptEvent)
			ds.PUT("/events/:event/reject", h.RejectEvent)

			ds.GET("/integrity", h.GetIntegrity)
		}
	}

	return router
}
