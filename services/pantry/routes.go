// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pantry

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all pantry routes with the router.
//
// Description:
//
//	Registers all /v1/pantry/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/pantry/utterance - Process one conversational turn
//	GET  /v1/pantry/orders/:session_id - Read the current cart
//
// Health Endpoints:
//
//	GET  /v1/pantry/health - Health check
//	GET  /v1/pantry/ready - Readiness check
//
// Example:
//
//	engine := pantry.NewEngine(store, classifier, fusion, nil, logger)
//	handlers := pantry.NewHandlers(engine, logger)
//
//	v1 := router.Group("/v1")
//	pantry.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	p := rg.Group("/pantry")
	{
		p.POST("/utterance", handlers.HandleUtterance)
		p.GET("/orders/:session_id", handlers.HandleGetOrder)

		p.GET("/health", handlers.HandleHealth)
		p.GET("/ready", handlers.HandleReady)
	}
}
